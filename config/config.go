// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database
	DatabaseURL string

	// HTTP
	ListenAddr string

	// Auth
	JWTSecret string

	// Mail
	SESSenderEmail string

	// Sweeps
	SweepInterval time.Duration

	// Application
	Stage    string
	LogLevel string
}

// Load reads configuration from environment variables, with a .env file as
// a local-development fallback. DATABASE_URL and JWT_SECRET are required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		SESSenderEmail: getEnv("SES_SENDER_EMAIL", ""),
		SweepInterval:  time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 300)) * time.Second,
		Stage:          getEnv("STAGE", "dev"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
