package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const sessionTTL = 24 * time.Hour

// SessionStore keeps the running conversation context for active
// consultations in Redis. Entries expire with the session TTL; callers
// rebuild context from persisted chat messages on a miss. History grows
// unbounded within the TTL window.
type SessionStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewSessionStore(redisClient *redis.Client) *SessionStore {
	if redisClient == nil {
		panic("triage: redis client cannot be nil")
	}
	return &SessionStore{
		redis:  redisClient,
		tracer: otel.Tracer("telecare/triage-session"),
	}
}

// Save replaces the stored history for a consultation.
func (s *SessionStore) Save(ctx context.Context, consultationID string, history []ChatMessage) error {
	ctx, span := s.tracer.Start(ctx, "triage.save_session")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("triage: failed to marshal session history: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(consultationID), data, sessionTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("triage: failed to persist session history: %w", err)
	}
	return nil
}

// Load returns the stored history, or nil when no session exists.
func (s *SessionStore) Load(ctx context.Context, consultationID string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "triage.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(consultationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("triage: failed to load session history: %w", err)
	}

	var history []ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("triage: failed to decode session history: %w", err)
	}
	return history, nil
}

// Append adds turns to the stored history, refreshing the TTL.
func (s *SessionStore) Append(ctx context.Context, consultationID string, turns ...ChatMessage) error {
	history, err := s.Load(ctx, consultationID)
	if err != nil {
		return err
	}
	return s.Save(ctx, consultationID, append(history, turns...))
}

func sessionKey(id string) string {
	return fmt.Sprintf("triage_session:%s", id)
}
