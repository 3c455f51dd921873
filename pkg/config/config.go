package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	RedisAddress       string
	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleProjectID    string
	GooglePubSubTopic  string
	GoogleCredentials  string // service account credentials file (optional)
	TokenCipherKey     string // 32-byte key, base64 encoded
	FrontendURL        string
	SpoolDir           string
	LogLevel           string
	LogJSON            bool
	SyncPageSize       int
	SyncRateLimit      float64
	SyncJobTimeout     time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	pageSize := 100
	if v := os.Getenv("SYNC_PAGE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			pageSize = parsed
		}
	}

	rateLimit := 10.0
	if v := os.Getenv("SYNC_RATE_LIMIT"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			rateLimit = parsed
		}
	}

	jobTimeout := 30 * time.Minute
	if v := os.Getenv("SYNC_JOB_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			jobTimeout = parsed
		}
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "host=localhost user=postgres dbname=dealdesk port=5432 sslmode=disable"),
		RedisAddress:       getEnv("REDIS_ADDRESS", "localhost:6379"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/oauth/google/callback"),
		GoogleProjectID:    getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:  getEnv("GOOGLE_PUBSUB_TOPIC", "gmail-updates"),
		GoogleCredentials:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		TokenCipherKey:     getEnv("TOKEN_CIPHER_KEY", ""),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		SpoolDir:           getEnv("SPOOL_DIR", "./spool"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogJSON:            getEnv("LOG_FORMAT", "") == "json",
		SyncPageSize:       pageSize,
		SyncRateLimit:      rateLimit,
		SyncJobTimeout:     jobTimeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
