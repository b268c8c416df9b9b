package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carelinkhq/telecare-platform/internal/observability/metrics"
	"github.com/carelinkhq/telecare-platform/internal/triage"
	"github.com/carelinkhq/telecare-platform/pkg/logging"
)

// fallbackReply is sent when the classifier cannot produce an assessment. It
// keeps the conversation moving and offers the human path the patient can
// always take.
const fallbackReply = "I'm sorry, I'm having trouble assessing your symptoms right now. " +
	"Would you like me to connect you with a doctor directly?"

// SessionHistory is the conversation-context port. Backed by Redis in
// production; history is rebuilt from persisted chat messages on a miss.
type SessionHistory interface {
	Load(ctx context.Context, consultationID string) ([]triage.ChatMessage, error)
	Append(ctx context.Context, consultationID string, turns ...triage.ChatMessage) error
}

// RoomProvisioner creates video rooms for live consultations.
type RoomProvisioner interface {
	CreateRoom(ctx context.Context, consultationID uuid.UUID) (string, error)
}

// MessageInput is one inbound patient turn. A nil ConsultationID starts a new
// consultation.
type MessageInput struct {
	ConsultationID *uuid.UUID
	PatientID      *uuid.UUID
	Message        string
	// History is client-supplied context, used only when neither the session
	// store nor the message log has any.
	History []triage.ChatMessage
}

// MessageResult is the outcome of one patient turn.
type MessageResult struct {
	Consultation *Consultation
	Reply        string
	Assessment   *triage.Assessment
	Escalated    bool
	Doctor       *AssignedDoctor
}

// Service drives the consultation lifecycle: triage while the AI owns the
// conversation, escalation and doctor handoff, video calls, and completion.
type Service struct {
	store    Store
	assessor triage.Assessor
	sessions SessionHistory
	rooms    RoomProvisioner
	logger   *logging.Logger
	metrics  *metrics.TriageMetrics
}

func NewService(store Store, assessor triage.Assessor, sessions SessionHistory, rooms RoomProvisioner, logger *logging.Logger, m *metrics.TriageMetrics) *Service {
	if store == nil {
		panic("consultation: store cannot be nil")
	}
	if assessor == nil {
		panic("consultation: assessor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		assessor: assessor,
		sessions: sessions,
		rooms:    rooms,
		logger:   logger,
		metrics:  m,
	}
}

// HandleMessage processes one patient turn. While the consultation is
// ai_active the turn runs through the classifier and may escalate to a doctor;
// once a doctor owns the conversation the message is persisted without an AI
// reply. Classifier failures never surface to the patient: they produce a
// fallback reply offering a direct doctor connection, and an explicit doctor
// request escalates even when the classifier is down.
func (s *Service) HandleMessage(ctx context.Context, in MessageInput) (*MessageResult, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, errors.New("consultation: message is required")
	}

	c, err := s.resolveConsultation(ctx, in)
	if err != nil {
		return nil, err
	}

	patientMsg := &ChatMessage{
		ConsultationID: c.ID,
		SenderType:     SenderPatient,
		SenderID:       in.PatientID,
		Message:        message,
	}
	if err := s.store.AppendMessage(ctx, patientMsg); err != nil {
		return nil, err
	}

	if c.Status != StatusAIActive {
		// A doctor owns the conversation; the AI stays silent.
		return &MessageResult{Consultation: c, Reply: ""}, nil
	}

	history := s.loadHistory(ctx, c, in.History)
	forced := triage.IsDoctorRequest(message)

	var (
		reply      string
		assessment *triage.Assessment
		escalate   = forced
		trigger    = "classifier"
	)
	if forced {
		trigger = "patient_request"
	}

	result, assessErr := s.assessor.Assess(ctx, triage.AssessmentRequest{
		Message: message,
		History: history,
	})
	switch {
	case assessErr != nil:
		s.logger.Error("triage assessment failed",
			"consultation_id", c.ID.String(),
			"error", assessErr.Error(),
		)
		s.metrics.ObserveAssessment("unknown", "error")
		reply = fallbackReply
	default:
		assessment = &result
		reply = result.Reply
		severity := Severity(result.Severity)
		if err := s.store.RecordTriage(ctx, c.ID, message, severity); err != nil {
			return nil, err
		}
		if result.RecommendDoctor || severity == SeverityHigh {
			escalate = true
		}
		outcome := "resolved"
		if escalate {
			outcome = "escalated"
		}
		s.metrics.ObserveAssessment(result.Severity, outcome)
	}

	var doctor *AssignedDoctor
	if escalate {
		doctor, reply = s.escalate(ctx, c, message, trigger, reply)
	}

	aiMsg := &ChatMessage{
		ConsultationID: c.ID,
		SenderType:     SenderAI,
		Message:        reply,
	}
	if err := s.store.AppendMessage(ctx, aiMsg); err != nil {
		return nil, err
	}
	s.appendSession(ctx, c.ID,
		triage.ChatMessage{Role: triage.ChatRoleUser, Content: message},
		triage.ChatMessage{Role: triage.ChatRoleAssistant, Content: reply},
	)

	updated, err := s.store.GetConsultation(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &MessageResult{
		Consultation: updated,
		Reply:        reply,
		Assessment:   assessment,
		Escalated:    doctor != nil,
		Doctor:       doctor,
	}, nil
}

// Handoff routes the consultation to a specialty and claims a doctor. It is
// the explicit entry used by the handoff endpoint; HandleMessage reaches the
// same path when the classifier or the patient asks for one. Returns
// ErrNoDoctorAvailable as a business outcome, not a fault.
func (s *Service) Handoff(ctx context.Context, consultationID uuid.UUID, symptoms string, severity Severity) (*AssignedDoctor, error) {
	if severity != "" && !severity.Valid() {
		return nil, fmt.Errorf("consultation: unknown severity %q", severity)
	}
	c, err := s.store.GetConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusAIActive {
		return nil, ErrInvalidTransition
	}
	if symptoms = strings.TrimSpace(symptoms); symptoms == "" && c.Symptoms != nil {
		symptoms = *c.Symptoms
	}
	if severity != "" && symptoms != "" {
		if err := s.store.RecordTriage(ctx, consultationID, symptoms, severity); err != nil {
			return nil, err
		}
	}

	specialty := triage.MatchSpecialty(symptoms)
	doc, err := s.store.AssignDoctor(ctx, consultationID, string(specialty))
	if err != nil {
		if errors.Is(err, ErrNoDoctorAvailable) {
			s.metrics.ObserveAssignment(string(specialty), "no_doctor")
		}
		return nil, err
	}
	s.metrics.ObserveAssignment(string(specialty), "assigned")
	s.metrics.ObserveEscalation("handoff_request", "assigned")

	if err := s.store.UpdateStatus(ctx, consultationID, StatusEscalated, StatusDoctorActive); err != nil {
		return nil, err
	}
	intro := &ChatMessage{
		ConsultationID: consultationID,
		SenderType:     SenderAI,
		Message:        doctorIntroMessage(doc),
	}
	if err := s.store.AppendMessage(ctx, intro); err != nil {
		return nil, err
	}
	s.logger.Info("doctor assigned",
		"consultation_id", consultationID.String(),
		"doctor_id", doc.ID.String(),
		"specialization", doc.Specialization,
	)
	return doc, nil
}

// StartVideoCall provisions a room for a doctor-active consultation and
// records the URL. Provisioning failure leaves the consultation doctor_active
// with no URL.
func (s *Service) StartVideoCall(ctx context.Context, consultationID uuid.UUID) (string, error) {
	if s.rooms == nil {
		return "", errors.New("consultation: video provisioning is not configured")
	}
	c, err := s.store.GetConsultation(ctx, consultationID)
	if err != nil {
		return "", err
	}
	if c.Status != StatusDoctorActive {
		return "", ErrInvalidTransition
	}

	roomURL, err := s.rooms.CreateRoom(ctx, consultationID)
	if err != nil {
		return "", fmt.Errorf("consultation: provision video room: %w", err)
	}
	if err := s.store.SetVideoCall(ctx, consultationID, roomURL); err != nil {
		return "", err
	}

	notice := &ChatMessage{
		ConsultationID: consultationID,
		SenderType:     SenderAI,
		Message:        "Your video call is ready. Join here: " + roomURL,
	}
	if err := s.store.AppendMessage(ctx, notice); err != nil {
		return "", err
	}
	return roomURL, nil
}

// Complete closes the consultation and releases the doctor. Reachable from
// doctor_active and video_call so an ended call never strands the episode.
func (s *Service) Complete(ctx context.Context, consultationID uuid.UUID) error {
	c, err := s.store.GetConsultation(ctx, consultationID)
	if err != nil {
		return err
	}
	switch c.Status {
	case StatusDoctorActive, StatusVideoCall:
	default:
		return ErrInvalidTransition
	}
	if err := s.store.Complete(ctx, consultationID, c.Status); err != nil {
		return err
	}
	s.logger.Info("consultation completed", "consultation_id", consultationID.String())
	return nil
}

// Get returns a consultation by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.store.GetConsultation(ctx, id)
}

// Transcript returns the ordered message history for a consultation.
func (s *Service) Transcript(ctx context.Context, consultationID uuid.UUID, limit int) ([]ChatMessage, error) {
	if _, err := s.store.GetConsultation(ctx, consultationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, consultationID, limit)
}

func (s *Service) resolveConsultation(ctx context.Context, in MessageInput) (*Consultation, error) {
	if in.ConsultationID == nil {
		return s.store.CreateConsultation(ctx, in.PatientID)
	}
	return s.store.GetConsultation(ctx, *in.ConsultationID)
}

// loadHistory prefers the session store, falls back to the persisted message
// log, and finally to client-supplied history.
func (s *Service) loadHistory(ctx context.Context, c *Consultation, supplied []triage.ChatMessage) []triage.ChatMessage {
	if s.sessions != nil {
		history, err := s.sessions.Load(ctx, c.ID.String())
		if err != nil {
			s.logger.Warn("session history unavailable",
				"consultation_id", c.ID.String(),
				"error", err.Error(),
			)
		} else if len(history) > 0 {
			return history
		}
	}

	msgs, err := s.store.ListMessages(ctx, c.ID, 0)
	if err != nil {
		s.logger.Warn("message log unavailable",
			"consultation_id", c.ID.String(),
			"error", err.Error(),
		)
	}
	history := make([]triage.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := triage.ChatRoleAssistant
		if m.SenderType == SenderPatient {
			role = triage.ChatRoleUser
		}
		history = append(history, triage.ChatMessage{Role: role, Content: m.Message})
	}
	// The inbound turn was already persisted; it is passed to the classifier
	// separately.
	if n := len(history); n > 0 && history[n-1].Role == triage.ChatRoleUser {
		history = history[:n-1]
	}
	if len(history) == 0 {
		return supplied
	}
	return history
}

func (s *Service) appendSession(ctx context.Context, id uuid.UUID, turns ...triage.ChatMessage) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Append(ctx, id.String(), turns...); err != nil {
		// Context loss is tolerable; the log remains the source of truth.
		s.logger.Warn("failed to append session history",
			"consultation_id", id.String(),
			"error", err.Error(),
		)
	}
}

// escalate routes to a specialty and claims a doctor, turning every outcome
// into the reply the patient sees. On success the consultation moves to
// doctor_active; when no doctor is free it stays ai_active.
func (s *Service) escalate(ctx context.Context, c *Consultation, message, trigger, reply string) (*AssignedDoctor, string) {
	text := message
	if c.Symptoms != nil {
		text = *c.Symptoms + " " + message
	}
	specialty := triage.MatchSpecialty(text)

	doc, err := s.store.AssignDoctor(ctx, c.ID, string(specialty))
	if err != nil {
		switch {
		case errors.Is(err, ErrNoDoctorAvailable):
			s.metrics.ObserveAssignment(string(specialty), "no_doctor")
			s.metrics.ObserveEscalation(trigger, "no_doctor")
			return nil, reply + "\n\nAll of our " + string(specialty) + " doctors are currently busy. " +
				"You can keep chatting with me, try again in a few minutes, or book a scheduled appointment instead."
		case errors.Is(err, ErrAlreadyAssigned):
			// A concurrent turn already won the handoff.
			return nil, reply
		default:
			s.logger.Error("doctor assignment failed",
				"consultation_id", c.ID.String(),
				"specialty", string(specialty),
				"error", err.Error(),
			)
			s.metrics.ObserveEscalation(trigger, "error")
			return nil, reply
		}
	}
	s.metrics.ObserveAssignment(string(specialty), "assigned")
	s.metrics.ObserveEscalation(trigger, "assigned")

	if err := s.store.UpdateStatus(ctx, c.ID, StatusEscalated, StatusDoctorActive); err != nil {
		s.logger.Error("failed to activate doctor",
			"consultation_id", c.ID.String(),
			"error", err.Error(),
		)
	}
	s.logger.Info("consultation escalated",
		"consultation_id", c.ID.String(),
		"doctor_id", doc.ID.String(),
		"specialization", doc.Specialization,
		"trigger", trigger,
	)
	return doc, reply + "\n\n" + doctorIntroMessage(doc)
}

func doctorIntroMessage(doc *AssignedDoctor) string {
	return "I'm connecting you with " + doc.FullName + " (" + doc.Specialization + "). " +
		"They will join this conversation shortly."
}
