package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.LLMProvider != "gemini" {
		t.Errorf("expected default provider gemini, got %s", cfg.LLMProvider)
	}
	if cfg.ClassifierTimeout != 30*time.Second {
		t.Errorf("expected 30s classifier timeout, got %s", cfg.ClassifierTimeout)
	}
	if cfg.ClassifierMaxAttempts != 3 {
		t.Errorf("expected 3 classifier attempts, got %d", cfg.ClassifierMaxAttempts)
	}
	if cfg.VideoRoomExpiry != time.Hour {
		t.Errorf("expected 1h room expiry, got %s", cfg.VideoRoomExpiry)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("LLM_PROVIDER", "Bedrock")
	t.Setenv("CLASSIFIER_TIMEOUT", "5s")
	t.Setenv("CLASSIFIER_MAX_ATTEMPTS", "1")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://portal.example.com")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("expected port override, got %s", cfg.Port)
	}
	if cfg.LLMProvider != "bedrock" {
		t.Errorf("expected normalized provider bedrock, got %s", cfg.LLMProvider)
	}
	if cfg.ClassifierTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.ClassifierTimeout)
	}
	if cfg.ClassifierMaxAttempts != 1 {
		t.Errorf("expected 1 attempt, got %d", cfg.ClassifierMaxAttempts)
	}
	if !cfg.RedisTLS {
		t.Error("expected RedisTLS true")
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.CORSAllowedOrigins[1] != "https://portal.example.com" {
		t.Errorf("expected trimmed origin, got %q", cfg.CORSAllowedOrigins[1])
	}
}

func TestGetEnvAsIntInvalid(t *testing.T) {
	t.Setenv("CLASSIFIER_MAX_ATTEMPTS", "not-a-number")
	cfg := Load()
	if cfg.ClassifierMaxAttempts != 3 {
		t.Errorf("expected fallback to default on parse error, got %d", cfg.ClassifierMaxAttempts)
	}
}
