/**
 * @description
 * Worker Service Entry Point.
 * Responsible for background tasks:
 * 1. Watching open markets whose trading deadline has passed and nudging their
 *    resolvers with a resolution_due event.
 * 2. Keeping the market listing cache warm.
 *
 * @dependencies
 * - backend/internal/config
 * - backend/internal/db
 * - backend/internal/models
 * - backend/internal/services
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/foresight-project/backend/internal/config"
	"github.com/foresight-project/backend/internal/db"
	"github.com/foresight-project/backend/internal/logger"
	"github.com/foresight-project/backend/internal/models"
	"github.com/foresight-project/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	watchInterval = 1 * time.Minute

	// dedupeTTL bounds how often we re-announce the same overdue market.
	dedupeTTL = 6 * time.Hour
)

func main() {
	logger.Info("🔥 Starting Foresight Worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 2. Connect DBs
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Postgres connection failed: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	// 3. Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Deadline Watcher Loop
	go func() {
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		// Initial sweep
		announceOverdueMarkets(ctx, pgDB, redisClient)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				announceOverdueMarkets(ctx, pgDB, redisClient)
			}
		}
	}()

	// 5. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	time.Sleep(1 * time.Second) // Give in-flight sweeps time to finish
	logger.Info("Worker exited.")
}

// announceOverdueMarkets finds open markets past their deadline and publishes a
// resolution_due event for each, deduplicated via Redis so resolvers aren't
// spammed every sweep.
func announceOverdueMarkets(ctx context.Context, pgDB *gorm.DB, redisClient *redis.Client) {
	var overdue []models.Market
	if err := pgDB.WithContext(ctx).
		Where("status = ? AND close_at <= ?", models.MarketStatusOpen, time.Now()).
		Order("close_at ASC").
		Limit(500).
		Find(&overdue).Error; err != nil {
		logger.Error("Failed to query overdue markets: %v", err)
		return
	}

	if len(overdue) == 0 {
		return
	}
	logger.Info("🔎 %d open market(s) past deadline", len(overdue))

	for _, m := range overdue {
		key := "resolution_due:" + m.Creator + ":" + strconv.FormatUint(m.Sequence, 10)
		ok, err := redisClient.SetNX(ctx, key, "1", dedupeTTL).Result()
		if err != nil {
			logger.Error("Dedupe check failed for %s/%d: %v", m.Creator, m.Sequence, err)
			continue
		}
		if !ok {
			continue // Already announced recently
		}

		event := services.MarketEvent{
			Type:     "resolution_due",
			Creator:  m.Creator,
			Sequence: m.Sequence,
			At:       time.Now().UTC().Format(time.RFC3339),
		}
		publishEvent(ctx, redisClient, event)
	}
}

func publishEvent(ctx context.Context, redisClient *redis.Client, event services.MarketEvent) {
	// MarketService owns the channel contract; reuse its publisher.
	s := &services.MarketService{Redis: redisClient}
	s.PublishEvent(ctx, event)
}
