// Package config gathers the environment-driven settings of the gateway.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime configuration for the gateway process.
// Values come from environment variables; godotenv loads a local .env
// file in development before this is read.
type Config struct {
	// HTTP
	Addr        string
	Environment string

	// Logging
	LogLevel string
	LogFile  string

	// Database (DATABASE_URL wins over the individual parts)
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Socket layer
	AckTimeout           time.Duration
	MaxMessagesPerSecond int
	BurstSize            int
}

// Load reads configuration from the environment with sensible defaults.
func Load() Config {
	return Config{
		Addr:        getEnvOrDefault("ADDR", ":8080"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  getEnvOrDefault("LOG_FILE", "gateway.log"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:      getEnvOrDefault("DB_PORT", "5432"),
		DBUser:      getEnvOrDefault("DB_USER", "postgres"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      getEnvOrDefault("DB_NAME", "messenger"),
		DBSSLMode:   getEnvOrDefault("DB_SSLMODE", "disable"),

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AckTimeout:           getEnvDuration("WS_ACK_TIMEOUT", 5*time.Second),
		MaxMessagesPerSecond: getEnvInt("WS_MAX_MESSAGES_PER_SECOND", 20),
		BurstSize:            getEnvInt("WS_BURST_SIZE", 40),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
