/**
 * @description
 * HTTP Handlers for trade execution and settlement.
 * Buy, sell and claim settle through the engine; positions and history read
 * back what settled. The faucet mints test collateral outside production.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 * - backend/internal/engine
 * - backend/internal/api/middleware
 * - gorm.io/gorm
 */

package handlers

import (
	"github.com/foresight-project/backend/internal/api/middleware"
	"github.com/foresight-project/backend/internal/config"
	"github.com/foresight-project/backend/internal/engine"
	"github.com/foresight-project/backend/internal/logger"
	"github.com/foresight-project/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TradeHandler struct {
	Service *services.TradeService
	Config  *config.Config
	DB      *gorm.DB
}

func NewTradeHandler(service *services.TradeService, cfg *config.Config, db *gorm.DB) *TradeHandler {
	return &TradeHandler{
		Service: service,
		Config:  cfg,
		DB:      db,
	}
}

// TradeRequest is the shared payload for buy and sell.
// The pinned handles are optional; when set they must match the market record.
type TradeRequest struct {
	Creator  string `json:"creator"`
	Sequence uint64 `json:"sequence"`
	Side     string `json:"side"`
	Amount   uint64 `json:"amount"`

	Vault           string `json:"vault,omitempty"`
	CollateralAsset string `json:"collateral_asset,omitempty"`
	ShareAsset      string `json:"share_asset,omitempty"`
}

// ClaimRequest is the payload for claiming winnings.
type ClaimRequest struct {
	Creator  string `json:"creator"`
	Sequence uint64 `json:"sequence"`

	Vault        string `json:"vault,omitempty"`
	WinningAsset string `json:"winning_asset,omitempty"`
}

func (h *TradeHandler) authedAccount(c *fiber.Ctx) (string, error) {
	subjectID, err := middleware.GetSubjectID(c)
	if err != nil {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	user, err := loadUserBySubject(c.Context(), h.DB, subjectID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", fiber.NewError(fiber.StatusNotFound, "User not found. Sync first.")
		}
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
	}
	return user.Account, nil
}

// PostBuy handles POST /api/v1/trade/buy
func (h *TradeHandler) PostBuy(c *fiber.Ctx) error {
	account, err := h.authedAccount(c)
	if err != nil {
		return err
	}

	var req TradeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "details": err.Error()})
	}

	side, err := engine.ParseSide(req.Side)
	if err != nil {
		return engineError(c, err)
	}

	res, err := h.Service.Buy(c.Context(), engine.BuyParams{
		Key:             engine.MarketKey{Creator: req.Creator, Sequence: req.Sequence},
		Caller:          account,
		Amount:          req.Amount,
		Side:            side,
		Vault:           req.Vault,
		CollateralAsset: req.CollateralAsset,
		ShareAsset:      req.ShareAsset,
	})
	if err != nil {
		logger.Error("PostBuy: %v", err)
		return engineError(c, err)
	}

	return c.JSON(fiber.Map{
		"shares_minted": res.SharesMinted,
		"fee_charged":   res.FeeCharged,
		"protocol_fee":  res.Split.ProtocolFee,
		"creator_fee":   res.Split.CreatorFee,
	})
}

// PostSell handles POST /api/v1/trade/sell
func (h *TradeHandler) PostSell(c *fiber.Ctx) error {
	account, err := h.authedAccount(c)
	if err != nil {
		return err
	}

	var req TradeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "details": err.Error()})
	}

	side, err := engine.ParseSide(req.Side)
	if err != nil {
		return engineError(c, err)
	}

	paid, err := h.Service.Sell(c.Context(), engine.SellParams{
		Key:        engine.MarketKey{Creator: req.Creator, Sequence: req.Sequence},
		Caller:     account,
		Amount:     req.Amount,
		Side:       side,
		Vault:      req.Vault,
		ShareAsset: req.ShareAsset,
	})
	if err != nil {
		logger.Error("PostSell: %v", err)
		return engineError(c, err)
	}

	return c.JSON(fiber.Map{"payout": paid})
}

// PostClaim handles POST /api/v1/trade/claim
func (h *TradeHandler) PostClaim(c *fiber.Ctx) error {
	account, err := h.authedAccount(c)
	if err != nil {
		return err
	}

	var req ClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "details": err.Error()})
	}

	res, err := h.Service.Claim(c.Context(), engine.ClaimParams{
		Key:          engine.MarketKey{Creator: req.Creator, Sequence: req.Sequence},
		Caller:       account,
		Vault:        req.Vault,
		WinningAsset: req.WinningAsset,
	})
	if err != nil {
		logger.Error("PostClaim: %v", err)
		return engineError(c, err)
	}

	return c.JSON(fiber.Map{
		"payout":        res.Payout,
		"shares_burned": res.SharesBurned,
		"winning_asset": res.WinningAsset,
	})
}

// GetPositions handles GET /api/v1/positions
func (h *TradeHandler) GetPositions(c *fiber.Ctx) error {
	account, err := h.authedAccount(c)
	if err != nil {
		return err
	}

	positions, err := h.Service.Positions(c.Context(), account)
	if err != nil {
		logger.Error("GetPositions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch positions"})
	}
	return c.JSON(positions)
}

// GetHistory handles GET /api/v1/markets/:creator/:id/history
func (h *TradeHandler) GetHistory(c *fiber.Ctx) error {
	key, err := marketKeyFromParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	trades, err := h.Service.History(c.Context(), key, c.QueryInt("limit", 50))
	if err != nil {
		logger.Error("GetHistory: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch history"})
	}
	return c.JSON(trades)
}

// FaucetRequest optionally overrides the configured asset and amount.
type FaucetRequest struct {
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

// PostFaucet handles POST /api/v1/faucet
// Mints test collateral to the caller. Disabled in production.
func (h *TradeHandler) PostFaucet(c *fiber.Ctx) error {
	if h.Config.Server.Env == "production" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Faucet is disabled in production"})
	}

	account, err := h.authedAccount(c)
	if err != nil {
		return err
	}

	var req FaucetRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "details": err.Error()})
	}

	asset := req.Asset
	if asset == "" {
		asset = h.Config.Market.FaucetAsset
	}
	amount := req.Amount
	if amount == 0 {
		amount = h.Config.Market.FaucetAmount
	}

	if err := h.Service.Faucet(c.Context(), account, asset, amount); err != nil {
		logger.Error("PostFaucet: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Faucet mint failed"})
	}

	return c.JSON(fiber.Map{"asset": asset, "amount": amount})
}
