package consultation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusAIActive, StatusEscalated, StatusDoctorActive, StatusVideoCall, StatusCompleted} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("archived").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatusDoctorBound(t *testing.T) {
	bound := map[Status]bool{
		StatusAIActive:     false,
		StatusEscalated:    true,
		StatusDoctorActive: true,
		StatusVideoCall:    true,
		StatusCompleted:    false,
	}
	for s, want := range bound {
		assert.Equal(t, want, s.DoctorBound(), string(s))
	}
}

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Severity("critical").Valid())
}

func TestCheckInvariant(t *testing.T) {
	docID := uuid.New()
	url := "https://video.example.com/room/abc"

	tests := []struct {
		name    string
		c       Consultation
		wantErr bool
	}{
		{"new consultation", Consultation{ID: uuid.New(), Status: StatusAIActive}, false},
		{"escalated with doctor", Consultation{ID: uuid.New(), Status: StatusEscalated, DoctorID: &docID}, false},
		{"doctor_active with doctor", Consultation{ID: uuid.New(), Status: StatusDoctorActive, DoctorID: &docID}, false},
		{"video_call with doctor and url", Consultation{ID: uuid.New(), Status: StatusVideoCall, DoctorID: &docID, VideoCallURL: &url}, false},
		{"completed without doctor", Consultation{ID: uuid.New(), Status: StatusCompleted}, false},
		{"completed keeps call url", Consultation{ID: uuid.New(), Status: StatusCompleted, VideoCallURL: &url}, false},
		{"escalated without doctor", Consultation{ID: uuid.New(), Status: StatusEscalated}, true},
		{"ai_active with doctor", Consultation{ID: uuid.New(), Status: StatusAIActive, DoctorID: &docID}, true},
		{"completed with doctor", Consultation{ID: uuid.New(), Status: StatusCompleted, DoctorID: &docID}, true},
		{"ai_active with call url", Consultation{ID: uuid.New(), Status: StatusAIActive, VideoCallURL: &url}, true},
		{"unknown status", Consultation{ID: uuid.New(), Status: Status("paused")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.CheckInvariant()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
