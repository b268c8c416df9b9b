package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the persistence port for consultations, chat messages, and the
// doctor pool.
type Store interface {
	CreateConsultation(ctx context.Context, patientID *uuid.UUID) (*Consultation, error)
	GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error)
	RecordTriage(ctx context.Context, id uuid.UUID, symptoms string, severity Severity) error
	AppendMessage(ctx context.Context, msg *ChatMessage) error
	ListMessages(ctx context.Context, consultationID uuid.UUID, limit int) ([]ChatMessage, error)

	// AssignDoctor atomically claims one available doctor of the given
	// specialization and binds them to the consultation. The claim and the
	// binding commit as a single unit; concurrent callers never observe a
	// doctor bound to two consultations. Returns ErrNoDoctorAvailable when
	// the pool has no free doctor of that specialization.
	AssignDoctor(ctx context.Context, consultationID uuid.UUID, specialization string) (*AssignedDoctor, error)

	// UpdateStatus transitions a consultation from one stage to another.
	// The write is conditional on the current stage; a stale transition
	// returns ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error

	// SetVideoCall stores a provisioned room URL and enters the video_call
	// stage in one write, conditional on doctor_active.
	SetVideoCall(ctx context.Context, id uuid.UUID, roomURL string) error

	// Complete ends a consultation, clearing the doctor binding and releasing
	// the doctor back to the pool in the same transaction. Conditional on the
	// current stage; a stale transition returns ErrInvalidTransition.
	Complete(ctx context.Context, id uuid.UUID, from Status) error
}

// PgxPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists consultations in Postgres.
type PGStore struct {
	pool PgxPool
}

func NewPGStore(pool PgxPool) *PGStore {
	if pool == nil {
		panic("consultation: pgx pool cannot be nil")
	}
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(
		&c.ID,
		&c.PatientID,
		&c.DoctorID,
		&c.Status,
		&c.Symptoms,
		&c.Severity,
		&c.VideoCallURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("consultation: scan: %w", err)
	}
	return &c, nil
}

func (s *PGStore) CreateConsultation(ctx context.Context, patientID *uuid.UUID) (*Consultation, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO consultations (id, patient_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, patient_id, doctor_id, status, symptoms, severity, video_call_url, created_at, updated_at
	`, uuid.New(), patientID, StatusAIActive)
	return scanConsultation(row)
}

func (s *PGStore) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, status, symptoms, severity, video_call_url, created_at, updated_at
		FROM consultations
		WHERE id = $1
	`, id)
	return scanConsultation(row)
}

// RecordTriage stores the assessed severity. Symptoms are set from the first
// patient message and kept thereafter.
func (s *PGStore) RecordTriage(ctx context.Context, id uuid.UUID, symptoms string, severity Severity) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE consultations
		SET symptoms = COALESCE(symptoms, $2),
		    severity = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, symptoms, severity)
	if err != nil {
		return fmt.Errorf("consultation: record triage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) AppendMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (id, consultation_id, sender_type, sender_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at
	`, msg.ID, msg.ConsultationID, msg.SenderType, msg.SenderID, msg.Message)
	if err := row.Scan(&msg.CreatedAt); err != nil {
		return fmt.Errorf("consultation: append message: %w", err)
	}
	return nil
}

func (s *PGStore) ListMessages(ctx context.Context, consultationID uuid.UUID, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, consultation_id, sender_type, sender_id, message, created_at
		FROM chat_messages
		WHERE consultation_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, consultationID, limit)
	if err != nil {
		return nil, fmt.Errorf("consultation: list messages: %w", err)
	}
	defer rows.Close()

	var result []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ConsultationID, &m.SenderType, &m.SenderID, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("consultation: scan message: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("consultation: list messages: %w", err)
	}
	return result, nil
}

// AssignDoctor claims a doctor with a single conditional UPDATE guarded by
// FOR UPDATE SKIP LOCKED, then binds the doctor to the consultation in the
// same transaction. A plain read-then-write sequence would let two concurrent
// escalations claim the same doctor.
func (s *PGStore) AssignDoctor(ctx context.Context, consultationID uuid.UUID, specialization string) (*AssignedDoctor, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("consultation: begin assign: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doc AssignedDoctor
	err = tx.QueryRow(ctx, `
		UPDATE doctors
		SET available = FALSE, updated_at = now()
		WHERE id = (
			SELECT id FROM doctors
			WHERE specialization = $1 AND available
			ORDER BY updated_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, full_name, specialization
	`, specialization).Scan(&doc.ID, &doc.FullName, &doc.Specialization)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoDoctorAvailable
		}
		return nil, fmt.Errorf("consultation: claim doctor: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE consultations
		SET doctor_id = $1, status = $2, updated_at = now()
		WHERE id = $3 AND doctor_id IS NULL AND status = $4
	`, doc.ID, StatusEscalated, consultationID, StatusAIActive)
	if err != nil {
		return nil, fmt.Errorf("consultation: bind doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Rolling back releases the claimed doctor.
		return nil, ErrAlreadyAssigned
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("consultation: commit assign: %w", err)
	}
	return &doc, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE consultations
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("consultation: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Complete closes a consultation and frees its doctor. The doctor row is read
// under lock so a concurrent claim cannot see the doctor half-released.
func (s *PGStore) Complete(ctx context.Context, id uuid.UUID, from Status) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("consultation: begin complete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doctorID *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT doctor_id FROM consultations
		WHERE id = $1 AND status = $2
		FOR UPDATE
	`, id, from).Scan(&doctorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("consultation: lock for complete: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE consultations
		SET status = $2, doctor_id = NULL, updated_at = now()
		WHERE id = $1
	`, id, StatusCompleted)
	if err != nil {
		return fmt.Errorf("consultation: complete: %w", err)
	}

	if doctorID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE doctors
			SET available = TRUE, updated_at = now()
			WHERE id = $1
		`, *doctorID)
		if err != nil {
			return fmt.Errorf("consultation: release doctor: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("consultation: commit complete: %w", err)
	}
	return nil
}

func (s *PGStore) SetVideoCall(ctx context.Context, id uuid.UUID, roomURL string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE consultations
		SET video_call_url = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, roomURL, StatusVideoCall, StatusDoctorActive)
	if err != nil {
		return fmt.Errorf("consultation: set video call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}
