/**
 * @description
 * API Route definitions.
 * Sets up the router groups and assigns handlers.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/api/handlers
 * - backend/internal/api/middleware
 * - backend/internal/services
 * - backend/internal/engine
 */

package api

import (
	"log"

	"github.com/foresight-project/backend/internal/api/handlers"
	"github.com/foresight-project/backend/internal/api/middleware"
	"github.com/foresight-project/backend/internal/config"
	"github.com/foresight-project/backend/internal/engine"
	"github.com/foresight-project/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, db *gorm.DB, rdb *redis.Client, eng *engine.Engine, cfg *config.Config) {
	// 1. Initialize Middleware
	if err := middleware.InitAuthMiddleware(cfg); err != nil {
		log.Printf("Failed to init auth middleware: %v", err)
		// We don't panic here to allow app to start in dev modes without valid keys,
		// but protected routes will fail.
	}

	// 2. Initialize Services
	marketService := services.NewMarketService(db, rdb, eng)
	tradeService := services.NewTradeService(db, marketService, eng)

	// 3. Initialize Handlers
	userHandler := handlers.NewUserHandler(db)
	marketHandler := handlers.NewMarketHandler(marketService, cfg, db)
	tradeHandler := handlers.NewTradeHandler(tradeService, cfg, db)

	// 4. Define Routes
	api := app.Group("/api")
	v1 := api.Group("/v1")

	// Public Routes
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Market Routes (Public reads, protected writes)
	markets := v1.Group("/markets")
	markets.Get("/stream", marketHandler.StreamEvents)
	markets.Get("/", marketHandler.ListMarkets)
	markets.Post("/", middleware.Protected(), marketHandler.CreateMarket)
	markets.Get("/:creator/:id", marketHandler.GetMarket)
	markets.Get("/:creator/:id/history", tradeHandler.GetHistory)
	markets.Post("/:creator/:id/resolve", middleware.Protected(), marketHandler.ResolveMarket)

	// Trade Routes (Protected)
	trade := v1.Group("/trade", middleware.Protected())
	trade.Post("/buy", tradeHandler.PostBuy)
	trade.Post("/sell", tradeHandler.PostSell)
	trade.Post("/claim", tradeHandler.PostClaim)

	// Account Routes (Protected)
	v1.Get("/positions", middleware.Protected(), tradeHandler.GetPositions)
	v1.Post("/faucet", middleware.Protected(), tradeHandler.PostFaucet)

	// User Routes (Protected)
	user := v1.Group("/user", middleware.Protected())
	user.Post("/sync", userHandler.SyncUser)
	user.Get("/me", userHandler.GetMe)
}
