package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, loaded once at startup.
type Config struct {
	Port        string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	TokenTTL   time.Duration
	RefreshTTL time.Duration

	PaymentSecretKey     string
	PaymentBaseURL       string
	PaymentWebhookSecret string
	MonthlyPriceID       string
	YearlyPriceID        string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Load reads .env if present, then the environment. Secrets have no
// defaults; missing ones fail startup instead of running half-configured.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		TokenTTL:   getEnvDuration("TOKEN_TTL", 15*time.Minute),
		RefreshTTL: getEnvDuration("REFRESH_TTL", 30*24*time.Hour),

		PaymentSecretKey:     os.Getenv("PAYMENT_SECRET_KEY"),
		PaymentBaseURL:       os.Getenv("PAYMENT_BASE_URL"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		MonthlyPriceID:       os.Getenv("PAYMENT_MONTHLY_PRICE_ID"),
		YearlyPriceID:        os.Getenv("PAYMENT_YEARLY_PRICE_ID"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "repair-photos"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PaymentWebhookSecret == "" {
		return nil, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
