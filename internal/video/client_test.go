package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/telecare-platform/pkg/logging"
)

func TestCreateRoom(t *testing.T) {
	consultationID := uuid.New()
	var gotAuth string
	var gotBody createRoomRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rooms", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(createRoomResponse{
			Name: gotBody.Name,
			URL:  "https://video.example.com/" + gotBody.Name,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", logging.New("error"), WithRoomExpiry(30*time.Minute))
	url, err := client.CreateRoom(context.Background(), consultationID)
	require.NoError(t, err)

	assert.Equal(t, "https://video.example.com/consultation-"+consultationID.String(), url)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.True(t, strings.HasPrefix(gotBody.Name, "consultation-"))

	// Expiry lands near now+30m.
	exp := time.Unix(gotBody.Properties.Exp, 0)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, time.Minute)
}

func TestCreateRoomProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", logging.New("error"))
	_, err := client.CreateRoom(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCreateRoomMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"room-1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", logging.New("error"))
	_, err := client.CreateRoom(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestCreateRoomUnconfigured(t *testing.T) {
	client := NewClient("", "", logging.New("error"))
	_, err := client.CreateRoom(context.Background(), uuid.New())
	require.Error(t, err)
}
