package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carelinkhq/telecare-platform/internal/observability/metrics"
	"github.com/carelinkhq/telecare-platform/pkg/logging"
)

var classifierTracer = otel.Tracer("telecare/triage-classifier")

const triageSystemPrompt = `You are a telemedicine triage assistant. Assess the patient's reported symptoms and respond with JSON only, in this exact shape:
{"reply": "<conversational reply to the patient>", "severity": "low|medium|high", "recommend_doctor": true|false, "home_remedies": ["..."], "requires_followup": true|false}

Assessment policy:
- Minor, self-limiting symptoms (common cold, mild headache, low-grade fever): severity "low", suggest home remedies, recommend_doctor false.
- Ambiguous or moderately concerning symptoms: severity "medium"; use your judgment on recommend_doctor.
- Urgent symptoms (severe pain, breathing difficulty, chest pain, emergency language): severity "high", recommend_doctor true.

Keep the reply short, warm, and plain. Never invent a diagnosis. Never tell the patient nothing is wrong.`

// Assessment is the structured clinical-style result of one classifier run.
type Assessment struct {
	Reply            string   `json:"reply"`
	Severity         string   `json:"severity"`
	RecommendDoctor  bool     `json:"recommend_doctor"`
	HomeRemedies     []string `json:"home_remedies"`
	RequiresFollowup bool     `json:"requires_followup"`
}

// AssessmentRequest carries one patient utterance plus its conversation
// context.
type AssessmentRequest struct {
	Message        string
	History        []ChatMessage
	PatientHistory string
}

// Assessor is the classifier port consumed by the consultation lifecycle.
type Assessor interface {
	Assess(ctx context.Context, req AssessmentRequest) (Assessment, error)
}

// ClassifierConfig tunes the classifier call discipline.
type ClassifierConfig struct {
	Model          string
	Provider       string        // metrics label, e.g. "gemini" or "bedrock"
	Timeout        time.Duration // per-attempt bound; a timeout is a generic failure
	MaxAttempts    int           // total attempts; retries apply to rate limiting only
	RetryBaseDelay time.Duration
	Metrics        *metrics.TriageMetrics
}

// Classifier turns a patient utterance plus conversation history into a
// structured severity assessment via the LLM port. Stateless; persistence of
// the exchange is the caller's responsibility.
type Classifier struct {
	llm    LLMClient
	cfg    ClassifierConfig
	logger *logging.Logger
}

func NewClassifier(llm LLMClient, cfg ClassifierConfig, logger *logging.Logger) *Classifier {
	if llm == nil {
		panic("triage: llm client cannot be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 250 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{llm: llm, cfg: cfg, logger: logger}
}

var _ Assessor = (*Classifier)(nil)

// Assess runs the classifier with bounded retry on rate limiting. Quota
// exhaustion and generic failures are returned to the caller on the first
// occurrence.
func (c *Classifier) Assess(ctx context.Context, req AssessmentRequest) (Assessment, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Assessment{}, errors.New("triage: message is required")
	}

	ctx, span := classifierTracer.Start(ctx, "triage.assess")
	defer span.End()
	span.SetAttributes(
		attribute.Int("triage.history_len", len(req.History)),
	)

	llmReq := c.buildRequest(req, message)

	delay := c.cfg.RetryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Warn("classifier rate limited, backing off",
				"attempt", attempt,
				"delay", delay.String(),
			)
			select {
			case <-ctx.Done():
				return Assessment{}, fmt.Errorf("triage: assessment canceled: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, err := c.complete(ctx, llmReq)
		if err == nil {
			assessment, parseErr := parseAssessment(resp.Text)
			if parseErr != nil {
				span.RecordError(parseErr)
				return Assessment{}, parseErr
			}
			span.SetAttributes(
				attribute.String("triage.severity", assessment.Severity),
				attribute.Bool("triage.recommend_doctor", assessment.RecommendDoctor),
			)
			return assessment, nil
		}

		lastErr = err
		if !errors.Is(err, ErrRateLimited) {
			break
		}
	}

	span.RecordError(lastErr)
	return Assessment{}, lastErr
}

func (c *Classifier) buildRequest(req AssessmentRequest, message string) LLMRequest {
	system := []string{triageSystemPrompt}
	if history := strings.TrimSpace(req.PatientHistory); history != "" {
		system = append(system, "Patient medical history:\n"+history)
	}

	messages := make([]ChatMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: message})

	return LLMRequest{
		Model:       c.cfg.Model,
		System:      system,
		Messages:    messages,
		MaxTokens:   512,
		Temperature: 0.2,
	}
}

func (c *Classifier) complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.llm.Complete(callCtx, req)
	if err != nil {
		// A hung call is indistinguishable from any other provider fault.
		if errors.Is(err, context.DeadlineExceeded) {
			return LLMResponse{}, fmt.Errorf("triage: classifier timed out after %s: %w", c.cfg.Timeout, err)
		}
		return LLMResponse{}, err
	}
	elapsed := time.Since(start)
	c.cfg.Metrics.ObserveClassifierLatency(c.cfg.Provider, elapsed.Seconds())
	c.logger.Debug("classifier completion",
		"duration_ms", elapsed.Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

// parseAssessment extracts the JSON object from the completion text. The
// model may wrap it in prose or fencing, so only the outermost brace pair is
// decoded.
func parseAssessment(text string) (Assessment, error) {
	content := strings.TrimSpace(text)
	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx < 0 || endIdx <= startIdx {
		return Assessment{}, fmt.Errorf("triage: classifier returned no JSON object: %q", truncate(content, 120))
	}
	content = content[startIdx : endIdx+1]

	var a Assessment
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return Assessment{}, fmt.Errorf("triage: malformed classifier response: %w", err)
	}

	a.Severity = strings.ToLower(strings.TrimSpace(a.Severity))
	switch a.Severity {
	case "low", "medium", "high":
	default:
		return Assessment{}, fmt.Errorf("triage: classifier returned unknown severity %q", a.Severity)
	}
	if strings.TrimSpace(a.Reply) == "" {
		return Assessment{}, errors.New("triage: classifier returned empty reply")
	}
	return a, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
