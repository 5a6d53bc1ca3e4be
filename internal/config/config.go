package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Environment
	Env string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Platform addresses. The coordinator address is granted the
	// coordinator role at startup; the module identities are the internal
	// addresses the ledger services act under.
	CoordinatorAddress      string
	TokenLedgerAddress      string
	SettlementEngineAddress string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get values from environment variables with defaults
	config := &Config{
		Env: getEnv("APP_ENV", "development"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "propstake"),
		DBPassword: getEnv("DB_PASSWORD", "propstake"),
		DBName:     getEnv("DB_NAME", "propstake"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Platform addresses
		CoordinatorAddress:      getEnv("COORDINATOR_ADDRESS", "coordinator"),
		TokenLedgerAddress:      getEnv("TOKEN_LEDGER_ADDRESS", "module:token-ledger"),
		SettlementEngineAddress: getEnv("SETTLEMENT_ENGINE_ADDRESS", "module:settlement-engine"),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
