// Package config loads service configuration from the environment, with a
// .env file honored in development.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay service.
type Config struct {
	APIKey string
	Model  string

	Port string
	Env  string

	// Optional transcript persistence.
	StoreType string // "sqlite" or "postgres"; empty disables persistence
	StoreDSN  string // file path (sqlite) or DSN (postgres)

	// Conversations idle longer than this many days are pruned. Zero
	// disables pruning.
	RetentionDays int
}

// Load reads configuration from environment variables, loading a .env file
// first when one exists. A missing API key is not fatal here: the relay keeps
// serving and fails credential-dependent requests individually.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		APIKey:        os.Getenv("GEMINI_API_KEY"),
		Model:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		StoreType:     os.Getenv("STORE_TYPE"),
		StoreDSN:      os.Getenv("STORE_DSN"),
		RetentionDays: getEnvInt("RETENTION_DAYS", 0),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
