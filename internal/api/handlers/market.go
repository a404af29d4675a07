/**
 * @description
 * Market API Handlers.
 * Exposes endpoints to create, list, inspect and resolve markets, plus a live
 * event stream over SSE.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 * - backend/internal/engine
 * - backend/internal/api/middleware
 */

package handlers

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/foresight-project/backend/internal/api/middleware"
	"github.com/foresight-project/backend/internal/config"
	"github.com/foresight-project/backend/internal/engine"
	"github.com/foresight-project/backend/internal/logger"
	"github.com/foresight-project/backend/internal/models"
	"github.com/foresight-project/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MarketHandler struct {
	Service  *services.MarketService
	Verifier *services.SignatureVerifier
	Config   *config.Config
	DB       *gorm.DB
}

func NewMarketHandler(service *services.MarketService, cfg *config.Config, db *gorm.DB) *MarketHandler {
	return &MarketHandler{
		Service:  service,
		Verifier: services.NewSignatureVerifier(),
		Config:   cfg,
		DB:       db,
	}
}

// marketKeyFromParams parses the :creator/:id route segments.
func marketKeyFromParams(c *fiber.Ctx) (engine.MarketKey, error) {
	creator := c.Params("creator")
	seq, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return engine.MarketKey{}, fmt.Errorf("invalid market id %q", c.Params("id"))
	}
	return engine.MarketKey{Creator: creator, Sequence: seq}, nil
}

// loadUserBySubject fetches the user row tied to the authenticated subject.
func loadUserBySubject(ctx context.Context, db *gorm.DB, subjectID string) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateMarketRequest represents the market creation payload
type CreateMarketRequest struct {
	Sequence        uint64 `json:"sequence"`
	Question        string `json:"question"`
	DurationSecs    int64  `json:"duration_secs"`
	FeeBps          uint32 `json:"fee_bps"`
	CollateralAsset string `json:"collateral_asset"`
	Resolver        string `json:"resolver"` // defaults to the creator's account
}

// CreateMarket handles POST /api/v1/markets
func (h *MarketHandler) CreateMarket(c *fiber.Ctx) error {
	subjectID, err := middleware.GetSubjectID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	user, err := loadUserBySubject(c.Context(), h.DB, subjectID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found. Sync first."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load user"})
	}

	var req CreateMarketRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "details": err.Error()})
	}

	resolver := req.Resolver
	if resolver == "" {
		resolver = user.Account
	}

	market, err := h.Service.CreateMarket(c.Context(), engine.CreateParams{
		Creator:         user.Account,
		Resolver:        resolver,
		Sequence:        req.Sequence,
		Question:        req.Question,
		Duration:        time.Duration(req.DurationSecs) * time.Second,
		FeeBps:          req.FeeBps,
		CollateralAsset: req.CollateralAsset,
		// The creator keeps their half of the trading fee on their own account.
		FeeCollector:                user.Account,
		FeeCollectorAccount:         user.Account,
		ProtocolFeeCollector:        h.Config.Market.ProtocolFeeCollector,
		ProtocolFeeCollectorAccount: h.Config.Market.ProtocolFeeAccount,
	})
	if err != nil {
		logger.Error("CreateMarket: %v", err)
		return engineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(market)
}

// ListMarkets handles GET /api/v1/markets
func (h *MarketHandler) ListMarkets(c *fiber.Ctx) error {
	markets, err := h.Service.ListMarkets(c.Context())
	if err != nil {
		logger.Error("ListMarkets: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch markets"})
	}
	return c.JSON(markets)
}

// GetMarket handles GET /api/v1/markets/:creator/:id
func (h *MarketHandler) GetMarket(c *fiber.Ctx) error {
	key, err := marketKeyFromParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	detail, err := h.Service.GetMarket(c.Context(), key)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(detail)
}

// ResolveMarketRequest carries the outcome plus the resolver's signature proof.
type ResolveMarketRequest struct {
	Outcome   bool   `json:"outcome"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// ResolveMarket handles POST /api/v1/markets/:creator/:id/resolve
// The caller must be the market's designated resolver and must present a fresh
// wallet signature over the resolution message.
func (h *MarketHandler) ResolveMarket(c *fiber.Ctx) error {
	subjectID, err := middleware.GetSubjectID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	key, err := marketKeyFromParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var req ResolveMarketRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "details": err.Error()})
	}

	user, err := loadUserBySubject(c.Context(), h.DB, subjectID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found. Sync first."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load user"})
	}

	if err := h.Verifier.VerifyResolutionProof(user.WalletAddress, key.Creator, key.Sequence, req.Outcome, req.Timestamp, req.Signature); err != nil {
		logger.Error("ResolveMarket: proof rejected for %s: %v", subjectID, err)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid resolution proof", "details": err.Error()})
	}

	if err := h.Service.Resolve(c.Context(), user.Account, key, req.Outcome); err != nil {
		logger.Error("ResolveMarket: %v", err)
		return engineError(c, err)
	}

	return c.JSON(fiber.Map{"status": "resolved", "outcome": req.Outcome})
}

// StreamEvents streams market lifecycle and trade events over SSE
// GET /api/v1/markets/stream
func (h *MarketHandler) StreamEvents(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	requestCtx := c.Context()

	ctx, cancel := context.WithCancel(context.Background())

	pubsub := h.Service.Redis.Subscribe(ctx, services.MarketEventChannel)
	ch := pubsub.Channel()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cancel()
			_ = pubsub.Close()
		}()

		requestDone := requestCtx.Done()

		for {
			select {
			case <-requestDone:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
