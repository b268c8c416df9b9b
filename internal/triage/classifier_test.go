package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/telecare-platform/pkg/logging"
)

type stubLLMClient struct {
	responses []LLMResponse
	errs      []error
	calls     int
	lastReq   LLMRequest
}

func (s *stubLLMClient) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	idx := s.calls
	s.calls++
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	if err != nil {
		return LLMResponse{}, err
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	return LLMResponse{}, errors.New("stub: no response configured")
}

func testConfig() ClassifierConfig {
	return ClassifierConfig{
		Model:          "test-model",
		Timeout:        time.Second,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestClassifierAssessParsesResult(t *testing.T) {
	llm := &stubLLMClient{
		responses: []LLMResponse{{
			Text: `{"reply": "Rest and fluids should help.", "severity": "low", "recommend_doctor": false, "home_remedies": ["rest", "drink water"], "requires_followup": false}`,
		}},
	}
	c := NewClassifier(llm, testConfig(), logging.New("error"))

	got, err := c.Assess(context.Background(), AssessmentRequest{Message: "I have a mild runny nose"})
	require.NoError(t, err)
	assert.Equal(t, "low", got.Severity)
	assert.False(t, got.RecommendDoctor)
	assert.Equal(t, []string{"rest", "drink water"}, got.HomeRemedies)
	assert.Equal(t, "Rest and fluids should help.", got.Reply)
}

func TestClassifierAssessExtractsWrappedJSON(t *testing.T) {
	llm := &stubLLMClient{
		responses: []LLMResponse{{
			Text: "Here is the assessment:\n```json\n{\"reply\": \"Please seek care now.\", \"severity\": \"high\", \"recommend_doctor\": true, \"home_remedies\": [], \"requires_followup\": true}\n```",
		}},
	}
	c := NewClassifier(llm, testConfig(), logging.New("error"))

	got, err := c.Assess(context.Background(), AssessmentRequest{Message: "I have severe chest pain"})
	require.NoError(t, err)
	assert.Equal(t, "high", got.Severity)
	assert.True(t, got.RecommendDoctor)
}

func TestClassifierRetriesRateLimitOnly(t *testing.T) {
	llm := &stubLLMClient{
		errs: []error{ErrRateLimited, nil},
		responses: []LLMResponse{
			{},
			{Text: `{"reply": "ok", "severity": "medium", "recommend_doctor": false, "home_remedies": [], "requires_followup": false}`},
		},
	}
	c := NewClassifier(llm, testConfig(), logging.New("error"))

	got, err := c.Assess(context.Background(), AssessmentRequest{Message: "odd stomach feeling"})
	require.NoError(t, err)
	assert.Equal(t, "medium", got.Severity)
	assert.Equal(t, 2, llm.calls)
}

func TestClassifierDoesNotRetryQuotaExhaustion(t *testing.T) {
	llm := &stubLLMClient{errs: []error{ErrQuotaExhausted}}
	c := NewClassifier(llm, testConfig(), logging.New("error"))

	_, err := c.Assess(context.Background(), AssessmentRequest{Message: "I feel dizzy"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 1, llm.calls)
}

func TestClassifierGivesUpAfterMaxAttempts(t *testing.T) {
	llm := &stubLLMClient{errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited}}
	c := NewClassifier(llm, testConfig(), logging.New("error"))

	_, err := c.Assess(context.Background(), AssessmentRequest{Message: "I feel dizzy"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, llm.calls)
}

func TestClassifierRejectsMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no json", "I cannot help with that."},
		{"bad json", `{"reply": "hi", "severity":`},
		{"unknown severity", `{"reply": "hi", "severity": "critical", "recommend_doctor": true}`},
		{"empty reply", `{"reply": "", "severity": "low", "recommend_doctor": false}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &stubLLMClient{responses: []LLMResponse{{Text: tt.text}}}
			c := NewClassifier(llm, testConfig(), logging.New("error"))
			_, err := c.Assess(context.Background(), AssessmentRequest{Message: "hello"})
			require.Error(t, err)
		})
	}
}

func TestClassifierRequiresMessage(t *testing.T) {
	c := NewClassifier(&stubLLMClient{}, testConfig(), logging.New("error"))
	_, err := c.Assess(context.Background(), AssessmentRequest{Message: "   "})
	require.Error(t, err)
}

func TestClassifierIncludesHistoryAndPatientContext(t *testing.T) {
	llm := &stubLLMClient{
		responses: []LLMResponse{{
			Text: `{"reply": "ok", "severity": "low", "recommend_doctor": false, "home_remedies": [], "requires_followup": false}`,
		}},
	}
	c := NewClassifier(llm, testConfig(), logging.New("error"))

	_, err := c.Assess(context.Background(), AssessmentRequest{
		Message:        "still coughing",
		PatientHistory: "asthma diagnosed 2019",
		History: []ChatMessage{
			{Role: ChatRoleUser, Content: "I have a cough"},
			{Role: ChatRoleAssistant, Content: "How long has it lasted?"},
		},
	})
	require.NoError(t, err)

	require.Len(t, llm.lastReq.System, 2)
	assert.Contains(t, llm.lastReq.System[1], "asthma")
	require.Len(t, llm.lastReq.Messages, 3)
	assert.Equal(t, "still coughing", llm.lastReq.Messages[2].Content)
}
