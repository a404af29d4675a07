/**
 * @description
 * Service layer for market lifecycle: creation, listing, detail views and
 * resolution. Orchestrates the settlement engine, Postgres persistence,
 * the Redis listing cache and the market event channel.
 *
 * @dependencies
 * - backend/internal/engine
 * - backend/internal/models
 * - gorm.io/gorm
 * - github.com/redis/go-redis/v9
 */

package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/foresight-project/backend/internal/engine"
	"github.com/foresight-project/backend/internal/logger"
	"github.com/foresight-project/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	CacheKeyMarkets = "markets:all"
	CacheTTL        = 1 * time.Minute

	// MarketEventChannel carries trade/resolution events for the SSE stream.
	MarketEventChannel = "markets:events"

	listLimit = 200
)

// MarketEvent is the payload published on MarketEventChannel.
type MarketEvent struct {
	Type     string `json:"type"` // market_created, trade, market_resolved, resolution_due
	Creator  string `json:"creator"`
	Sequence uint64 `json:"sequence"`
	Caller   string `json:"caller,omitempty"`
	Action   string `json:"action,omitempty"`
	Side     string `json:"side,omitempty"`
	Amount   uint64 `json:"amount,omitempty"`
	Payout   uint64 `json:"payout,omitempty"`
	Outcome  *bool  `json:"outcome,omitempty"`
	At       string `json:"at"`
}

// MarketDetail is a market record joined with its live ledger figures.
type MarketDetail struct {
	models.Market
	YesSupply    uint64  `json:"yes_supply"`
	NoSupply     uint64  `json:"no_supply"`
	VaultBalance uint64  `json:"vault_balance"`
	YesOdds      float64 `json:"yes_odds"` // yes / (yes + no); 0 when nothing trades
}

type MarketService struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Engine *engine.Engine
}

func NewMarketService(db *gorm.DB, rdb *redis.Client, eng *engine.Engine) *MarketService {
	return &MarketService{
		DB:     db,
		Redis:  rdb,
		Engine: eng,
	}
}

// CreateMarket runs the engine create and refreshes the listing cache.
func (s *MarketService) CreateMarket(ctx context.Context, p engine.CreateParams) (*models.Market, error) {
	m, err := s.Engine.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx)
	s.PublishEvent(ctx, MarketEvent{
		Type:     "market_created",
		Creator:  m.Creator,
		Sequence: m.Sequence,
		At:       time.Now().UTC().Format(time.RFC3339),
	})
	return m, nil
}

// ListMarkets returns recent markets, preferring Cache -> DB.
func (s *MarketService) ListMarkets(ctx context.Context) ([]models.Market, error) {
	// 1. Try Redis
	val, err := s.Redis.Get(ctx, CacheKeyMarkets).Result()
	if err == nil {
		var markets []models.Market
		if err := json.Unmarshal([]byte(val), &markets); err == nil {
			return markets, nil
		}
		// If unmarshal fails, fall through to DB
	}

	// 2. Fallback to DB
	var markets []models.Market
	if err := s.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(listLimit).
		Find(&markets).Error; err != nil {
		return nil, err
	}

	data, err := json.Marshal(markets)
	if err != nil {
		logger.Error("Failed to marshal markets for cache: %v", err)
	} else if err := s.Redis.Set(ctx, CacheKeyMarkets, data, CacheTTL).Err(); err != nil {
		logger.Error("Failed to set markets cache: %v", err)
	}

	return markets, nil
}

// GetMarket loads one market with its supplies, vault balance and implied odds.
func (s *MarketService) GetMarket(ctx context.Context, key engine.MarketKey) (*MarketDetail, error) {
	store := NewMarketStore(s.DB)
	m, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	l := s.Engine.Ledger()
	yes, err := l.SupplyOf(ctx, m.YesAsset)
	if err != nil {
		return nil, err
	}
	no, err := l.SupplyOf(ctx, m.NoAsset)
	if err != nil {
		return nil, err
	}
	vault, err := l.BalanceOf(ctx, m.CollateralAsset, m.Vault)
	if err != nil {
		return nil, err
	}

	detail := &MarketDetail{
		Market:       *m,
		YesSupply:    yes,
		NoSupply:     no,
		VaultBalance: vault,
	}
	if yes+no > 0 {
		detail.YesOdds = float64(yes) / float64(yes+no)
	}
	return detail, nil
}

// Resolve fixes the market outcome via the engine and broadcasts the result.
func (s *MarketService) Resolve(ctx context.Context, caller string, key engine.MarketKey, outcome bool) error {
	if err := s.Engine.Resolve(ctx, caller, key, outcome); err != nil {
		return err
	}

	s.invalidateCache(ctx)
	o := outcome
	s.PublishEvent(ctx, MarketEvent{
		Type:     "market_resolved",
		Creator:  key.Creator,
		Sequence: key.Sequence,
		Caller:   caller,
		Outcome:  &o,
		At:       time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// PublishEvent pushes an event onto the market event channel. Failures are
// logged, never propagated: settlement already happened.
func (s *MarketService) PublishEvent(ctx context.Context, event MarketEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal market event: %v", err)
		return
	}
	if err := s.Redis.Publish(ctx, MarketEventChannel, payload).Err(); err != nil {
		logger.Error("Failed to publish market event: %v", err)
	}
}

func (s *MarketService) invalidateCache(ctx context.Context) {
	if err := s.Redis.Del(ctx, CacheKeyMarkets).Err(); err != nil {
		logger.Error("Failed to invalidate markets cache: %v", err)
	}
}
