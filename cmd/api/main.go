package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carelinkhq/telecare-platform/cmd/mainconfig"
	"github.com/carelinkhq/telecare-platform/internal/api/router"
	appconfig "github.com/carelinkhq/telecare-platform/internal/config"
	"github.com/carelinkhq/telecare-platform/internal/consultation"
	"github.com/carelinkhq/telecare-platform/internal/observability/metrics"
	"github.com/carelinkhq/telecare-platform/internal/triage"
	"github.com/carelinkhq/telecare-platform/internal/video"
	"github.com/carelinkhq/telecare-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telecare-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	store := consultation.NewPGStore(pool)

	// Redis-backed conversation sessions
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	sessions := triage.NewSessionStore(redisClient)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	triageMetrics := metrics.NewTriageMetrics(registry)

	llm, err := buildLLMClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	classifier := triage.NewClassifier(llm, triage.ClassifierConfig{
		Model:          classifierModel(cfg),
		Provider:       cfg.LLMProvider,
		Timeout:        cfg.ClassifierTimeout,
		MaxAttempts:    cfg.ClassifierMaxAttempts,
		RetryBaseDelay: cfg.ClassifierRetryBaseDelay,
		Metrics:        triageMetrics,
	}, logger.WithComponent("classifier"))

	var rooms consultation.RoomProvisioner
	if cfg.VideoAPIBaseURL != "" {
		rooms = video.NewClient(cfg.VideoAPIBaseURL, cfg.VideoAPIKey,
			logger.WithComponent("video"),
			video.WithRoomExpiry(cfg.VideoRoomExpiry),
		)
	}

	service := consultation.NewService(store, classifier, sessions, rooms,
		logger.WithComponent("consultation"), triageMetrics)
	handler := consultation.NewHandler(service, logger.WithComponent("http"))

	// Setup router
	r := router.New(&router.Config{
		Logger:              logger,
		ConsultationHandler: handler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AuthJWTSecret:       cfg.AuthJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		TriageRateLimit:     2,
		TriageBurst:         5,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildLLMClient wires the configured provider as primary, with the other
// provider as fallback when its credentials are present.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (triage.LLMClient, error) {
	var gemini triage.LLMClient
	if cfg.GeminiAPIKey != "" {
		client, err := triage.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, err
		}
		gemini = client
	}

	var bedrock triage.LLMClient
	if cfg.BedrockModelID != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Bedrock resolves the model per request, so pin it here; requests
		// built for the primary provider carry the primary's model id.
		bedrock = modelOverride{
			inner: triage.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg)),
			model: cfg.BedrockModelID,
		}
	}

	slogger := logger.WithComponent("llm").Logger
	switch cfg.LLMProvider {
	case "bedrock":
		if bedrock == nil {
			return nil, fmt.Errorf("LLM_PROVIDER=bedrock but BEDROCK_MODEL_ID is not set")
		}
		return triage.NewFallbackLLMClient(bedrock, gemini, slogger), nil
	default:
		if gemini == nil {
			return nil, fmt.Errorf("LLM_PROVIDER=%s but GEMINI_API_KEY is not set", cfg.LLMProvider)
		}
		return triage.NewFallbackLLMClient(gemini, bedrock, slogger), nil
	}
}

type modelOverride struct {
	inner triage.LLMClient
	model string
}

func (m modelOverride) Complete(ctx context.Context, req triage.LLMRequest) (triage.LLMResponse, error) {
	req.Model = m.model
	return m.inner.Complete(ctx, req)
}

func classifierModel(cfg *appconfig.Config) string {
	if cfg.LLMProvider == "bedrock" {
		return cfg.BedrockModelID
	}
	return cfg.GeminiModelID
}
