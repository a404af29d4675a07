/**
 * @description
 * Service for trade execution and settlement: buy, sell and claim.
 * Bridges the API layer with the settlement engine, persists an audit row per
 * settled operation, and feeds the market event channel.
 *
 * @dependencies
 * - backend/internal/engine
 * - backend/internal/models
 * - gorm.io/gorm
 */

package services

import (
	"context"
	"time"

	"github.com/foresight-project/backend/internal/engine"
	"github.com/foresight-project/backend/internal/logger"
	"github.com/foresight-project/backend/internal/models"
	"gorm.io/gorm"
)

type TradeService struct {
	DB      *gorm.DB
	Markets *MarketService
	Engine  *engine.Engine
}

func NewTradeService(db *gorm.DB, markets *MarketService, eng *engine.Engine) *TradeService {
	return &TradeService{
		DB:      db,
		Markets: markets,
		Engine:  eng,
	}
}

// Buy settles an issuance through the engine and records it.
func (s *TradeService) Buy(ctx context.Context, p engine.BuyParams) (engine.BuyResult, error) {
	res, err := s.Engine.Buy(ctx, p)
	if err != nil {
		return engine.BuyResult{}, err
	}

	s.recordTrade(ctx, &models.Trade{
		Creator:  p.Key.Creator,
		Sequence: p.Key.Sequence,
		Caller:   p.Caller,
		Action:   models.TradeActionBuy,
		Side:     string(p.Side),
		Amount:   p.Amount,
		Shares:   res.SharesMinted,
		Fee:      res.FeeCharged,
	})
	s.Markets.PublishEvent(ctx, MarketEvent{
		Type:     "trade",
		Creator:  p.Key.Creator,
		Sequence: p.Key.Sequence,
		Caller:   p.Caller,
		Action:   string(models.TradeActionBuy),
		Side:     string(p.Side),
		Amount:   p.Amount,
		At:       time.Now().UTC().Format(time.RFC3339),
	})
	return res, nil
}

// Sell settles a pre-resolution exit through the engine and records it.
func (s *TradeService) Sell(ctx context.Context, p engine.SellParams) (uint64, error) {
	paid, err := s.Engine.Sell(ctx, p)
	if err != nil {
		return 0, err
	}

	s.recordTrade(ctx, &models.Trade{
		Creator:  p.Key.Creator,
		Sequence: p.Key.Sequence,
		Caller:   p.Caller,
		Action:   models.TradeActionSell,
		Side:     string(p.Side),
		Amount:   p.Amount,
		Payout:   paid,
	})
	s.Markets.PublishEvent(ctx, MarketEvent{
		Type:     "trade",
		Creator:  p.Key.Creator,
		Sequence: p.Key.Sequence,
		Caller:   p.Caller,
		Action:   string(models.TradeActionSell),
		Side:     string(p.Side),
		Amount:   p.Amount,
		Payout:   paid,
		At:       time.Now().UTC().Format(time.RFC3339),
	})
	return paid, nil
}

// Claim settles a post-resolution redemption through the engine and records it.
func (s *TradeService) Claim(ctx context.Context, p engine.ClaimParams) (engine.ClaimResult, error) {
	res, err := s.Engine.Claim(ctx, p)
	if err != nil {
		return engine.ClaimResult{}, err
	}

	// Zero-payout claims are valid no-ops; don't clutter the audit trail.
	if res.Payout > 0 {
		s.recordTrade(ctx, &models.Trade{
			Creator:  p.Key.Creator,
			Sequence: p.Key.Sequence,
			Caller:   p.Caller,
			Action:   models.TradeActionClaim,
			Shares:   res.SharesBurned,
			Payout:   res.Payout,
		})
		s.Markets.PublishEvent(ctx, MarketEvent{
			Type:     "trade",
			Creator:  p.Key.Creator,
			Sequence: p.Key.Sequence,
			Caller:   p.Caller,
			Action:   string(models.TradeActionClaim),
			Payout:   res.Payout,
			At:       time.Now().UTC().Format(time.RFC3339),
		})
	}
	return res, nil
}

// Position is one market's share holdings for an account.
type Position struct {
	Creator   string              `json:"creator"`
	Sequence  uint64              `json:"sequence"`
	Question  string              `json:"question"`
	Status    models.MarketStatus `json:"status"`
	Outcome   *bool               `json:"outcome,omitempty"`
	YesShares uint64              `json:"yes_shares"`
	NoShares  uint64              `json:"no_shares"`
}

// Positions returns the account's non-zero share holdings across all markets.
func (s *TradeService) Positions(ctx context.Context, account string) ([]Position, error) {
	var markets []models.Market
	if err := s.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&markets).Error; err != nil {
		return nil, err
	}

	l := s.Engine.Ledger()
	positions := make([]Position, 0)
	for _, m := range markets {
		yes, err := l.BalanceOf(ctx, m.YesAsset, account)
		if err != nil {
			return nil, err
		}
		no, err := l.BalanceOf(ctx, m.NoAsset, account)
		if err != nil {
			return nil, err
		}
		if yes == 0 && no == 0 {
			continue
		}
		positions = append(positions, Position{
			Creator:   m.Creator,
			Sequence:  m.Sequence,
			Question:  m.Question,
			Status:    m.Status,
			Outcome:   m.Outcome,
			YesShares: yes,
			NoShares:  no,
		})
	}
	return positions, nil
}

// History returns the most recent settled trades for one market.
func (s *TradeService) History(ctx context.Context, key engine.MarketKey, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var trades []models.Trade
	if err := s.DB.WithContext(ctx).
		Where("creator = ? AND sequence = ?", key.Creator, key.Sequence).
		Order("created_at DESC").
		Limit(limit).
		Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// Faucet mints test collateral to the account. The handler gates this to
// non-production environments.
func (s *TradeService) Faucet(ctx context.Context, account, asset string, amount uint64) error {
	return s.Engine.Ledger().Mint(ctx, asset, account, amount)
}

// recordTrade persists the audit row. Settlement already happened, so failures
// are logged rather than propagated.
func (s *TradeService) recordTrade(ctx context.Context, trade *models.Trade) {
	if err := s.DB.WithContext(ctx).Create(trade).Error; err != nil {
		logger.Error("Failed to persist trade for %s/%d: %v", trade.Creator, trade.Sequence, err)
	}
}
