package main

import (
	"context"
	"testing"

	appconfig "github.com/carelinkhq/telecare-platform/internal/config"
	"github.com/carelinkhq/telecare-platform/internal/triage"
	"github.com/carelinkhq/telecare-platform/pkg/logging"
)

func TestBuildLLMClientRequiresCredentials(t *testing.T) {
	logger := logging.New("error")

	cfg := &appconfig.Config{LLMProvider: "gemini"}
	if _, err := buildLLMClient(context.Background(), cfg, logger); err == nil {
		t.Fatalf("expected error when no gemini key is configured")
	}

	cfg = &appconfig.Config{LLMProvider: "bedrock"}
	if _, err := buildLLMClient(context.Background(), cfg, logger); err == nil {
		t.Fatalf("expected error when no bedrock model is configured")
	}
}

func TestClassifierModelFollowsProvider(t *testing.T) {
	cfg := &appconfig.Config{
		LLMProvider:    "bedrock",
		GeminiModelID:  "gemini-2.5-flash",
		BedrockModelID: "anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if got := classifierModel(cfg); got != cfg.BedrockModelID {
		t.Fatalf("expected bedrock model, got %q", got)
	}

	cfg.LLMProvider = "gemini"
	if got := classifierModel(cfg); got != cfg.GeminiModelID {
		t.Fatalf("expected gemini model, got %q", got)
	}
}

type recordingClient struct {
	lastModel string
}

func (c *recordingClient) Complete(_ context.Context, req triage.LLMRequest) (triage.LLMResponse, error) {
	c.lastModel = req.Model
	return triage.LLMResponse{Text: "{}"}, nil
}

func TestModelOverrideRewritesModel(t *testing.T) {
	inner := &recordingClient{}
	client := modelOverride{inner: inner, model: "pinned-model"}

	_, err := client.Complete(context.Background(), triage.LLMRequest{Model: "other"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.lastModel != "pinned-model" {
		t.Fatalf("expected pinned model, got %q", inner.lastModel)
	}
}
