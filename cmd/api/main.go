/**
 * @description
 * Main entry point for the Foresight Backend API.
 * Initializes the Fiber web server, loads configuration, wires the settlement
 * engine over Postgres, and sets up routes.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: Web framework
 * - backend/internal/config: Config loader
 * - backend/internal/db: Database connections
 * - backend/internal/engine: Settlement engine
 *
 * @notes
 * - Connects to Postgres and Redis on startup.
 * - Sets up basic middleware (CORS, Logger, Recover).
 */

package main

import (
	"log"

	"github.com/foresight-project/backend/internal/api"
	"github.com/foresight-project/backend/internal/config"
	"github.com/foresight-project/backend/internal/db"
	"github.com/foresight-project/backend/internal/engine"
	"github.com/foresight-project/backend/internal/ledger"
	"github.com/foresight-project/backend/internal/models"
	"github.com/foresight-project/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Database Connections
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	if err := pgDB.AutoMigrate(
		&models.User{},
		&models.Market{},
		&models.Holding{},
		&models.Trade{},
	); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	// Redis (Cache & Events)
	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// 3. Wire the Settlement Engine
	eng := engine.New(
		services.NewMarketStore(pgDB),
		ledger.NewPostgresLedger(pgDB),
		engine.WithCollateralWhitelist(cfg.Market.CollateralWhitelist),
	)

	// 4. Initialize Fiber App
	app := fiber.New(fiber.Config{
		AppName:       "Foresight Markets",
		StrictRouting: true,
		CaseSensitive: true,
	})

	// 5. Global Middleware
	app.Use(recover.New()) // Panic recovery
	app.Use(logger.New())  // Request logging
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*", // TODO: Lock this down in production
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// 6. Routes
	api.SetupRoutes(app, pgDB, redisClient, eng, cfg)

	// 7. Start Server
	log.Printf("🚀 Starting Foresight Backend on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
