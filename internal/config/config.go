/**
 * @description
 * Configuration loader for the Foresight Backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 * - standard "fmt": For error reporting
 *
 * @notes
 * - Fails fast if critical variables (Database URL) are missing.
 * - Market policy knobs (collateral whitelist, protocol treasury account) live here so
 *   the settlement engine itself stays policy-free.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Market MarketConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
	Env  string // "development", "staging" or "production"
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// AuthConfig holds identity provider settings
type AuthConfig struct {
	JWKSURL string // URL to fetch JSON Web Key Set for JWT validation
}

// MarketConfig holds market policy settings
type MarketConfig struct {
	// ProtocolFeeCollector is the identity credited with the protocol half of trading fees.
	ProtocolFeeCollector string
	// ProtocolFeeAccount is the ledger account receiving the protocol fee half.
	ProtocolFeeAccount string
	// CollateralWhitelist restricts which assets may back a market. Empty = any asset.
	CollateralWhitelist []string
	// FaucetAsset / FaucetAmount configure the dev-only collateral faucet.
	FaucetAsset  string
	FaucetAmount uint64
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod might inject env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Auth: AuthConfig{
			JWKSURL: getEnv("AUTH_JWKS_URL", ""),
		},
		Market: MarketConfig{
			ProtocolFeeCollector: getEnv("PROTOCOL_FEE_COLLECTOR", "protocol-treasury"),
			ProtocolFeeAccount:   getEnv("PROTOCOL_FEE_ACCOUNT", "protocol-treasury"),
			CollateralWhitelist:  splitList(getEnv("MARKET_COLLATERAL_WHITELIST", "")),
			FaucetAsset:          getEnv("FAUCET_ASSET", "usdx"),
			FaucetAmount:         uint64(getEnvAsInt("FAUCET_AMOUNT", 1_000_000)),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWKSURL == "" && cfg.Server.Env != "test" {
		// Warning: strictly required for Auth middleware
		fmt.Println("Warning: AUTH_JWKS_URL is missing. Auth middleware will fail.")
	}
	if cfg.Market.ProtocolFeeAccount == "" {
		return fmt.Errorf("PROTOCOL_FEE_ACCOUNT cannot be empty")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// splitList parses a comma-separated env value into a trimmed slice
func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
