package triage

import (
	"context"
	"errors"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an in-memory conversation turn used as classifier context.
// It is distinct from the persisted consultation chat record.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is the classification service port. Implementations map provider
// failures onto the typed errors below so callers can distinguish retryable
// throttling from quota exhaustion.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

var (
	// ErrRateLimited marks a throttled call; retryable after backoff.
	ErrRateLimited = errors.New("triage: classifier rate limited")
	// ErrQuotaExhausted marks an exhausted billing quota; not retryable,
	// requires operator action.
	ErrQuotaExhausted = errors.New("triage: classifier quota exhausted")
)
