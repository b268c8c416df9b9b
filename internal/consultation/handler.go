package consultation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carelinkhq/telecare-platform/internal/http/middleware"
	"github.com/carelinkhq/telecare-platform/internal/triage"
	"github.com/carelinkhq/telecare-platform/pkg/logging"
)

// Handler exposes the consultation lifecycle over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("consultation: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type doctorResponse struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Specialization string `json:"specialization"`
}

type assessmentResponse struct {
	Severity         string   `json:"severity"`
	RecommendDoctor  bool     `json:"recommend_doctor"`
	HomeRemedies     []string `json:"home_remedies,omitempty"`
	RequiresFollowup bool     `json:"requires_followup"`
}

// HandleTriageMessage accepts one patient chat turn. A missing consultation_id
// starts a new consultation.
func (h *Handler) HandleTriageMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConsultationID string `json:"consultation_id"`
		Message        string `json:"message"`
		History        []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"conversation_history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	in := MessageInput{
		Message:   req.Message,
		PatientID: callerID(r),
	}
	if req.ConsultationID != "" {
		id, err := uuid.Parse(req.ConsultationID)
		if err != nil {
			http.Error(w, "invalid consultation_id", http.StatusBadRequest)
			return
		}
		in.ConsultationID = &id
	}
	for _, m := range req.History {
		role := triage.ChatRoleUser
		if m.Role == string(triage.ChatRoleAssistant) {
			role = triage.ChatRoleAssistant
		}
		in.History = append(in.History, triage.ChatMessage{Role: role, Content: m.Content})
	}

	res, err := h.service.HandleMessage(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "triage message failed", err)
		return
	}

	resp := struct {
		ConsultationID string              `json:"consultation_id"`
		Status         string              `json:"status"`
		Reply          string              `json:"reply"`
		Escalated      bool                `json:"escalated"`
		Assessment     *assessmentResponse `json:"assessment,omitempty"`
		Doctor         *doctorResponse     `json:"doctor,omitempty"`
	}{
		ConsultationID: res.Consultation.ID.String(),
		Status:         string(res.Consultation.Status),
		Reply:          res.Reply,
		Escalated:      res.Escalated,
	}
	if res.Assessment != nil {
		resp.Assessment = &assessmentResponse{
			Severity:         res.Assessment.Severity,
			RecommendDoctor:  res.Assessment.RecommendDoctor,
			HomeRemedies:     res.Assessment.HomeRemedies,
			RequiresFollowup: res.Assessment.RequiresFollowup,
		}
	}
	if res.Doctor != nil {
		resp.Doctor = &doctorResponse{
			ID:             res.Doctor.ID.String(),
			FullName:       res.Doctor.FullName,
			Specialization: res.Doctor.Specialization,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHandoff routes a consultation to a specialty doctor. A full doctor
// pool is a business outcome, not an error: the response reports
// assigned=false and the consultation stays with the AI.
func (h *Handler) HandleHandoff(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	var req struct {
		Symptoms string `json:"symptoms"`
		Severity string `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	severity := Severity(req.Severity)
	if req.Severity != "" && !severity.Valid() {
		http.Error(w, "severity must be low, medium, or high", http.StatusBadRequest)
		return
	}

	doc, err := h.service.Handoff(r.Context(), id, req.Symptoms, severity)
	if err != nil {
		if errors.Is(err, ErrNoDoctorAvailable) {
			writeJSON(w, http.StatusOK, map[string]any{
				"assigned": false,
				"reason":   "no_doctor_available",
			})
			return
		}
		h.writeServiceError(w, "handoff failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assigned": true,
		"doctor": doctorResponse{
			ID:             doc.ID.String(),
			FullName:       doc.FullName,
			Specialization: doc.Specialization,
		},
	})
}

// HandleStartVideoCall provisions a video room for a doctor-active
// consultation.
func (h *Handler) HandleStartVideoCall(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	url, err := h.service.StartVideoCall(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "video call failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"video_call_url": url})
}

// HandleComplete closes a consultation.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	if err := h.service.Complete(r.Context(), id); err != nil {
		h.writeServiceError(w, "complete failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(StatusCompleted)})
}

// HandleTranscript returns the message history for a consultation the caller
// owns. Doctors see any consultation; patients only their own.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := h.consultationID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "transcript failed", err)
		return
	}
	if !callerOwns(r, c) {
		// Scoping failures are indistinguishable from missing rows.
		http.Error(w, "consultation not found", http.StatusNotFound)
		return
	}

	msgs, err := h.service.Transcript(r.Context(), id, 0)
	if err != nil {
		h.writeServiceError(w, "transcript failed", err)
		return
	}

	type messageResponse struct {
		ID         string `json:"id"`
		SenderType string `json:"sender_type"`
		Message    string `json:"message"`
		CreatedAt  string `json:"created_at"`
	}
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:         m.ID.String(),
			SenderType: string(m.SenderType),
			Message:    m.Message,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consultation_id": id.String(),
		"status":          string(c.Status),
		"messages":        out,
	})
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) consultationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid consultation id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "consultation not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, "consultation is not in a valid state for this action", http.StatusConflict)
	case errors.Is(err, triage.ErrRateLimited):
		http.Error(w, "assessment service is rate limited, try again shortly", http.StatusTooManyRequests)
	case errors.Is(err, triage.ErrQuotaExhausted):
		http.Error(w, "assessment quota exhausted", http.StatusPaymentRequired)
	default:
		h.logger.Error(msg, "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// callerID extracts the authenticated caller's id, when the subject is a UUID.
func callerID(r *http.Request) *uuid.UUID {
	claims, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return nil
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil
	}
	return &id
}

func callerOwns(r *http.Request, c *Consultation) bool {
	claims, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		// No auth configured on this route; trust the router.
		return true
	}
	if claims.Role == "doctor" {
		return true
	}
	if c.PatientID == nil {
		return true
	}
	return claims.Subject == c.PatientID.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
