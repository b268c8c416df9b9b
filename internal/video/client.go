// Package video provisions rooms for live doctor consultations through an
// external video provider's REST API.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelinkhq/telecare-platform/pkg/logging"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRoomExpiry = time.Hour
)

// Client creates video rooms. Rooms expire on their own; the platform never
// deletes them.
type Client struct {
	baseURL    string
	apiKey     string
	roomExpiry time.Duration
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRoomExpiry overrides how long a provisioned room stays joinable.
func WithRoomExpiry(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.roomExpiry = d
		}
	}
}

// NewClient creates a video provider client.
func NewClient(baseURL, apiKey string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		roomExpiry: defaultRoomExpiry,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRoomRequest struct {
	Name       string `json:"name"`
	Properties struct {
		Exp int64 `json:"exp"` // unix seconds
	} `json:"properties"`
}

type createRoomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CreateRoom provisions a room named after the consultation and returns its
// join URL.
func (c *Client) CreateRoom(ctx context.Context, consultationID uuid.UUID) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("video: base URL is not configured")
	}

	reqBody := createRoomRequest{Name: "consultation-" + consultationID.String()}
	reqBody.Properties.Exp = time.Now().Add(c.roomExpiry).Unix()

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("video: marshal room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("video: build room request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("video: create room: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("video: read room response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("video room provisioning failed",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return "", fmt.Errorf("video: provider returned status %d", resp.StatusCode)
	}

	var room createRoomResponse
	if err := json.Unmarshal(body, &room); err != nil {
		return "", fmt.Errorf("video: decode room response: %w", err)
	}
	if room.URL == "" {
		return "", fmt.Errorf("video: provider returned no room url")
	}

	c.logger.Info("video room provisioned",
		"consultation_id", consultationID.String(),
		"room", room.Name,
	)
	return room.URL, nil
}
