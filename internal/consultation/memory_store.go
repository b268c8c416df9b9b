package consultation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and local development. It
// honors the same atomic-claim contract as PGStore: the doctor claim and the
// consultation binding happen under one lock.
type MemoryStore struct {
	mu            sync.Mutex
	consultations map[uuid.UUID]*Consultation
	messages      map[uuid.UUID][]ChatMessage
	doctors       map[uuid.UUID]*Doctor
	seq           int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		consultations: make(map[uuid.UUID]*Consultation),
		messages:      make(map[uuid.UUID][]ChatMessage),
		doctors:       make(map[uuid.UUID]*Doctor),
	}
}

var _ Store = (*MemoryStore)(nil)

// AddDoctor seeds a doctor into the pool.
func (s *MemoryStore) AddDoctor(doc Doctor) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	s.doctors[doc.ID] = &doc
	return doc.ID
}

// DoctorAvailable reports the availability flag of a doctor.
func (s *MemoryStore) DoctorAvailable(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.doctors[id]
	return ok && doc.Available
}

func (s *MemoryStore) CreateConsultation(_ context.Context, patientID *uuid.UUID) (*Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	c := &Consultation{
		ID:        uuid.New(),
		PatientID: patientID,
		Status:    StatusAIActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.consultations[c.ID] = c
	return copyConsultation(c), nil
}

func (s *MemoryStore) GetConsultation(_ context.Context, id uuid.UUID) (*Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consultations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConsultation(c), nil
}

func (s *MemoryStore) RecordTriage(_ context.Context, id uuid.UUID, symptoms string, severity Severity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consultations[id]
	if !ok {
		return ErrNotFound
	}
	if c.Symptoms == nil {
		c.Symptoms = &symptoms
	}
	sev := severity
	c.Severity = &sev
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg *ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consultations[msg.ConsultationID]; !ok {
		return ErrNotFound
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	// Monotonic timestamps keep ordering stable for messages appended within
	// the same wall-clock tick.
	s.seq++
	msg.CreatedAt = time.Now().UTC().Add(time.Duration(s.seq) * time.Microsecond)
	s.messages[msg.ConsultationID] = append(s.messages[msg.ConsultationID], *msg)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, consultationID uuid.UUID, limit int) ([]ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[consultationID]
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AssignDoctor(_ context.Context, consultationID uuid.UUID, specialization string) (*AssignedDoctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.consultations[consultationID]
	if !ok {
		return nil, ErrNotFound
	}
	if c.DoctorID != nil || c.Status != StatusAIActive {
		return nil, ErrAlreadyAssigned
	}

	// Deterministic claim order for tests: oldest id first.
	ids := make([]uuid.UUID, 0, len(s.doctors))
	for id := range s.doctors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		doc := s.doctors[id]
		if !doc.Available || doc.Specialization != specialization {
			continue
		}
		doc.Available = false
		doc.UpdatedAt = time.Now().UTC()
		docID := doc.ID
		c.DoctorID = &docID
		c.Status = StatusEscalated
		c.UpdatedAt = doc.UpdatedAt
		return &AssignedDoctor{ID: doc.ID, FullName: doc.FullName, Specialization: doc.Specialization}, nil
	}
	return nil, ErrNoDoctorAvailable
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consultations[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != from {
		return ErrInvalidTransition
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SetVideoCall(_ context.Context, id uuid.UUID, roomURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consultations[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != StatusDoctorActive {
		return ErrInvalidTransition
	}
	c.VideoCallURL = &roomURL
	c.Status = StatusVideoCall
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Complete(_ context.Context, id uuid.UUID, from Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consultations[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != from {
		return ErrInvalidTransition
	}
	if c.DoctorID != nil {
		if doc, ok := s.doctors[*c.DoctorID]; ok {
			doc.Available = true
			doc.UpdatedAt = time.Now().UTC()
		}
		c.DoctorID = nil
	}
	c.Status = StatusCompleted
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func copyConsultation(c *Consultation) *Consultation {
	out := *c
	return &out
}
