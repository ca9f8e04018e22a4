package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every externally tunable setting, read once at startup.
type Config struct {
	Port     string
	LogLevel string

	// Decision tree definition. Empty means the embedded default tree.
	TreePath string

	// Redis session store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Twilio WhatsApp delivery.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Gemini AI fallback.
	GeminiAPIKey string
	GeminiModel  string

	// Qdrant retrieval context (optional; empty URL disables it).
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	EmbeddingModel   string

	// Paynow mobile-money gateway.
	PaynowIntegrationID  string
	PaynowIntegrationKey string
	PaynowReturnURL      string
	PaynowResultURL      string

	// Subscription pricing.
	SubscriptionAmount float64
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Load reads all env vars and builds the config.
func Load() *Config {
	return &Config{
		Port:     getEnv("ZIVAI_PORT", "8080"),
		LogLevel: getEnv("ZIVAI_LOG_LEVEL", "info"),

		TreePath: getEnv("ZIVAI_TREE_PATH", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		SessionTTL:    time.Duration(getIntEnv("ZIVAI_SESSION_TTL_HOURS", 24)) * time.Hour,

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		QdrantURL:        getEnv("QDRANT_URL", ""),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "conversations"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),

		PaynowIntegrationID:  getEnv("PAYNOW_ID", ""),
		PaynowIntegrationKey: getEnv("PAYNOW_KEY", ""),
		PaynowReturnURL:      getEnv("PAYNOW_RETURN_URL", ""),
		PaynowResultURL:      getEnv("PAYNOW_RESULT_URL", ""),

		SubscriptionAmount: getFloatEnv("ZIVAI_SUBSCRIPTION_AMOUNT", 0.10),
	}
}

// Validate checks settings required to serve.
func (c *Config) Validate() error {
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFromNumber == "" {
		return fmt.Errorf("twilio credentials are not fully set")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}
	if c.PaynowIntegrationID == "" || c.PaynowIntegrationKey == "" {
		return fmt.Errorf("paynow credentials are not fully set")
	}
	return nil
}
