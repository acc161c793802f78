// Package httpsink reports worker status to a remote collector over HTTP.
package httpsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/drudgelabs/drudge/internal/status"
)

// Option configures a Sink
type Option func(s *Sink)

// WithTimeout sets the timeout for status posts.
// If timeout is 0, it defaults to 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Sink) {
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		s.client.Timeout = timeout
	}
}

func WithBearerToken(token string) Option {
	return func(s *Sink) {
		s.bearerToken = token
	}
}

// Sink posts each status report to {baseURL}/workers/{workerID}/status.
type Sink struct {
	client      *http.Client
	baseURL     string
	bearerToken string
}

// New creates an HTTP-based status sink
func New(baseURL string, opts ...Option) *Sink {
	s := &Sink{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Report(ctx context.Context, st status.Status) error {
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	url := fmt.Sprintf("%s/workers/%s/status", s.baseURL, st.WorkerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.bearerToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status post failed with status %d", resp.StatusCode)
	}

	return nil
}
