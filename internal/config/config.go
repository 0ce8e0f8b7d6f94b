// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the dashboard services.
type Config struct {
	// HTTP server.
	ServerPort string
	GinMode    string

	// Storage backend: "memory", "sqlite" or "postgres".
	StorageBackend string
	SQLitePath     string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string

	// Queue backend: "memory" or "nats".
	QueueBackend string
	NATSURL      string
	MaxDeliver   int
	AckWait      time.Duration

	// LLM provider.
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string

	// Scheduling and resolution.
	CollectCron       string
	WorkerConcurrency int
	MarketTTL         time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Config: no .env file loaded: %v", err)
	}

	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		GinMode:    getEnv("GIN_MODE", "debug"),

		StorageBackend: getEnv("STORAGE_BACKEND", "sqlite"),
		SQLitePath:     getEnv("SQLITE_PATH", "dashboard.db"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "admin"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "dashboard_db"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),

		QueueBackend: getEnv("QUEUE_BACKEND", "memory"),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		MaxDeliver:   getEnvInt("QUEUE_MAX_DELIVER", 3),
		AckWait:      getEnvDuration("QUEUE_ACK_WAIT", 5*time.Minute),

		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),

		CollectCron:       getEnv("COLLECT_CRON", "* * * * *"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		MarketTTL:         getEnvDuration("MARKET_INFO_TTL", 7*24*time.Hour),
	}

	if cfg.AnthropicAPIKey == "" {
		log.Println("Warning: ANTHROPIC_API_KEY not configured. Resolution workers will fail until it is set.")
	}
	return cfg
}

// PostgresDSN assembles the gorm postgres DSN from the DB_* settings.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// getEnv reads an environment variable with a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Config: invalid %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Config: invalid %s=%q, using default %s", key, value, fallback)
		return fallback
	}
	return d
}
