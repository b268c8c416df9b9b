package consultation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle stage of a consultation.
type Status string

const (
	StatusAIActive     Status = "ai_active"
	StatusEscalated    Status = "escalated"
	StatusDoctorActive Status = "doctor_active"
	StatusVideoCall    Status = "video_call"
	StatusCompleted    Status = "completed"
)

// Valid reports whether s is a known lifecycle stage.
func (s Status) Valid() bool {
	switch s {
	case StatusAIActive, StatusEscalated, StatusDoctorActive, StatusVideoCall, StatusCompleted:
		return true
	}
	return false
}

// DoctorBound reports whether a consultation in this stage must have a doctor
// assigned. doctor_id is non-null if and only if the stage is doctor-bound.
func (s Status) DoctorBound() bool {
	switch s {
	case StatusEscalated, StatusDoctorActive, StatusVideoCall:
		return true
	}
	return false
}

// Severity is the triage severity assessment for a consultation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// SenderType identifies who authored a chat message.
type SenderType string

const (
	SenderPatient SenderType = "patient"
	SenderDoctor  SenderType = "doctor"
	SenderAI      SenderType = "ai"
)

var (
	ErrNotFound          = errors.New("consultation: not found")
	ErrNoDoctorAvailable = errors.New("consultation: no doctor available")
	ErrAlreadyAssigned   = errors.New("consultation: doctor already assigned")
	ErrInvalidTransition = errors.New("consultation: invalid status transition")
)

// Consultation represents one patient care episode from first message to
// resolution. Rows are never deleted; completion is a terminal status.
type Consultation struct {
	ID           uuid.UUID
	PatientID    *uuid.UUID
	DoctorID     *uuid.UUID
	Status       Status
	Symptoms     *string
	Severity     *Severity
	VideoCallURL *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CheckInvariant verifies doctor binding is consistent with the lifecycle
// stage, and that a room URL only exists once a doctor is engaged.
func (c *Consultation) CheckInvariant() error {
	if !c.Status.Valid() {
		return fmt.Errorf("consultation %s: unknown status %q", c.ID, c.Status)
	}
	bound := c.DoctorID != nil
	if bound != c.Status.DoctorBound() {
		return fmt.Errorf("consultation %s: doctor_id set=%v inconsistent with status %q", c.ID, bound, c.Status)
	}
	if c.VideoCallURL != nil && !c.Status.DoctorBound() && c.Status != StatusCompleted {
		return fmt.Errorf("consultation %s: video url present in status %q", c.ID, c.Status)
	}
	return nil
}

// ChatMessage is one persisted turn in a consultation. Append-only.
type ChatMessage struct {
	ID             uuid.UUID
	ConsultationID uuid.UUID
	SenderType     SenderType
	SenderID       *uuid.UUID
	Message        string
	CreatedAt      time.Time
}

// Doctor is a care provider eligible for assignment.
type Doctor struct {
	ID             uuid.UUID
	FullName       string
	Specialization string
	Available      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AssignedDoctor is the outcome of a successful doctor claim.
type AssignedDoctor struct {
	ID             uuid.UUID
	FullName       string
	Specialization string
}
