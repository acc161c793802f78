package httpsink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/drudgelabs/drudge/internal/status"
)

func testStatus() status.Status {
	return status.Status{
		WorkerID:        "billing",
		RunID:           "run-1",
		PID:             4242,
		State:           "running",
		StartedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
		CyclesCompleted: 3,
	}
}

func TestReportPostsToWorkerPath(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody status.Status

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := New(srv.URL + "/")
	if err := sink.Report(context.Background(), testStatus()); err != nil {
		t.Fatalf("Failed to report: %v", err)
	}

	if gotPath != "/workers/billing/status" {
		t.Errorf("Path mismatch: got %s, want /workers/billing/status", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content type mismatch: got %s", gotContentType)
	}
	if gotBody.WorkerID != "billing" || gotBody.CyclesCompleted != 3 {
		t.Errorf("Body mismatch: got %+v", gotBody)
	}
}

func TestReportBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := New(srv.URL, WithBearerToken("sekrit"))
	if err := sink.Report(context.Background(), testStatus()); err != nil {
		t.Fatalf("Failed to report: %v", err)
	}

	if gotAuth != "Bearer sekrit" {
		t.Errorf("Authorization mismatch: got %q", gotAuth)
	}
}

func TestReportServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := New(srv.URL)
	err := sink.Report(context.Background(), testStatus())
	if err == nil {
		t.Fatal("Expected error on 500 response")
	}
}

func TestReportContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := New(srv.URL)
	if err := sink.Report(ctx, testStatus()); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}
