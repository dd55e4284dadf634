package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey   string
	GeminiModel    string
	HTTPPort       string
	LogLevel       string
	LogFormat      string
	JWTSecret      string
	StoreDriver    string
	DatabaseURL    string
	RedisAddr      string
	RedisTTL       time.Duration
	CatalogPath    string
	ChatDailyLimit int
	ChatSessionTTL time.Duration
}

// Requirement selects which settings Validate insists on.
type Requirement int

const (
	RequireChat Requirement = 1 << iota
	RequireAuth
)

var (
	ErrMissingGeminiKey = errors.New("GEMINI_API_KEY environment variable is required")
	ErrMissingJWTSecret = errors.New("JWT_SECRET environment variable is required")
)

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		StoreDriver:    getEnv("STORE_DRIVER", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", "storefront.db"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisTTL:       getEnvAsDuration("REDIS_TTL", 720*time.Hour),
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		ChatDailyLimit: getEnvAsInt("CHAT_DAILY_LIMIT", 4),
		ChatSessionTTL: getEnvAsDuration("CHAT_SESSION_TTL", 2*time.Hour),
	}

	switch cfg.StoreDriver {
	case "sqlite", "redis", "memory":
	default:
		return nil, fmt.Errorf("config: unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.ChatDailyLimit <= 0 {
		return nil, fmt.Errorf("config: CHAT_DAILY_LIMIT must be > 0 (got %d)", cfg.ChatDailyLimit)
	}

	return cfg, nil
}

// Validate checks that the settings a binary needs are present.
func (c *Config) Validate(req Requirement) error {
	var errs []error
	if req&RequireChat != 0 && c.GeminiAPIKey == "" {
		errs = append(errs, ErrMissingGeminiKey)
	}
	if req&RequireAuth != 0 && c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	return errors.Join(errs...)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
