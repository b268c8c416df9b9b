package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	AuthJWTSecret string

	// Redis session store
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Triage classifier
	LLMProvider              string // "gemini" or "bedrock"
	GeminiAPIKey             string
	GeminiModelID            string
	BedrockModelID           string
	AWSRegion                string
	ClassifierTimeout        time.Duration
	ClassifierMaxAttempts    int
	ClassifierRetryBaseDelay time.Duration

	// Video room provisioning
	VideoAPIBaseURL string
	VideoAPIKey     string
	VideoRoomExpiry time.Duration

	// HTTP
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		LLMProvider:              strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:            getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:           getEnv("BEDROCK_MODEL_ID", ""),
		AWSRegion:                getEnv("AWS_REGION", "us-east-1"),
		ClassifierTimeout:        getEnvAsDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
		ClassifierMaxAttempts:    getEnvAsInt("CLASSIFIER_MAX_ATTEMPTS", 3),
		ClassifierRetryBaseDelay: getEnvAsDuration("CLASSIFIER_RETRY_BASE_DELAY", 250*time.Millisecond),

		VideoAPIBaseURL: getEnv("VIDEO_API_BASE_URL", ""),
		VideoAPIKey:     getEnv("VIDEO_API_KEY", ""),
		VideoRoomExpiry: getEnvAsDuration("VIDEO_ROOM_EXPIRY", time.Hour),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
