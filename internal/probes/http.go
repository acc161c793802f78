package probes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drudgelabs/drudge/internal/stats"
)

// HTTP checks that an endpoint answers a GET within a timeout. By default
// any status below 400 passes; set expectStatus to pin an exact code.
type HTTP struct {
	id           string
	url          string
	expectStatus int
	client       *http.Client
}

// NewHTTP builds an HTTP probe.
//
// Params:
//   - url: endpoint to GET (required)
//   - timeoutMs: request timeout (default 10000)
//   - expectStatus: exact status code to require (0 = any below 400)
func NewHTTP(id string, params map[string]interface{}) (*HTTP, error) {
	url, err := requireString(params, "url")
	if err != nil {
		return nil, err
	}

	h := &HTTP{
		id:     id,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	if v, ok := paramInt(params, "timeoutMs"); ok {
		if v < 1 {
			return nil, fmt.Errorf("timeoutMs must be positive (got %d)", v)
		}
		h.client.Timeout = time.Duration(v) * time.Millisecond
	}
	if v, ok := paramInt(params, "expectStatus"); ok {
		if v < 100 || v > 599 {
			return nil, fmt.Errorf("expectStatus must be a valid HTTP status (got %d)", v)
		}
		h.expectStatus = v
	}

	return h, nil
}

func (h *HTTP) Name() string { return "http-probe" }

func (h *HTTP) Work(ctx context.Context, tracker *stats.Tracker) (err error) {
	scope := tracker.Begin("get")
	defer func() { scope.EndWith(err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused across cycles.
	_, _ = io.Copy(io.Discard, resp.Body)

	if h.expectStatus != 0 {
		if resp.StatusCode != h.expectStatus {
			return fmt.Errorf("%s returned status %d (want %d)", h.url, resp.StatusCode, h.expectStatus)
		}
		return nil
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned status %d", h.url, resp.StatusCode)
	}
	return nil
}
