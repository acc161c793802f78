package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startTestServer(t *testing.T, handler func(Command) (map[string]interface{}, error)) (*Server, string) {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "w.sock")
	srv, err := NewServer(socketPath, handler)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Stop()
	})
	return srv, socketPath
}

func TestPingRoundTrip(t *testing.T) {
	_, socketPath := startTestServer(t, func(cmd Command) (map[string]interface{}, error) {
		if cmd.Type != CommandPing {
			return nil, fmt.Errorf("unexpected command: %s", cmd.Type)
		}
		return map[string]interface{}{"pong": true}, nil
	})

	client := NewClient(socketPath)
	resp, err := client.Ping()
	if err != nil {
		t.Fatalf("Failed to ping: %v", err)
	}

	if !resp.Success {
		t.Errorf("Expected success, got %+v", resp)
	}
	if resp.Data["pong"] != true {
		t.Errorf("Expected pong data, got %v", resp.Data)
	}
}

func TestHandlerErrorBecomesFailureResponse(t *testing.T) {
	_, socketPath := startTestServer(t, func(cmd Command) (map[string]interface{}, error) {
		return nil, fmt.Errorf("not ready")
	})

	client := NewClient(socketPath)
	resp, err := client.Stats()
	if err != nil {
		t.Fatalf("Transport should succeed even when handler fails: %v", err)
	}

	if resp.Success {
		t.Error("Expected failure response")
	}
	if resp.Error != "not ready" {
		t.Errorf("Error mismatch: got %q, want not ready", resp.Error)
	}
}

func TestStopRemovesSocketFile(t *testing.T) {
	srv, socketPath := startTestServer(t, func(cmd Command) (map[string]interface{}, error) {
		return nil, nil
	})

	if _, err := os.Stat(socketPath); err != nil {
		t.Fatalf("Socket file should exist while running: %v", err)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("Socket file should be removed after stop, stat err: %v", err)
	}
	if srv.IsRunning() {
		t.Error("Server should report stopped")
	}
}

func TestClientConnectFailsWhenNoServer(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	client.SetTimeout(time.Second)

	if _, err := client.Ping(); err == nil {
		t.Fatal("Expected connect error when no server is listening")
	}
}

func TestServerReplacesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "w.sock")

	// Leave behind a stale socket file from a crashed run
	if err := os.WriteFile(socketPath, []byte{}, 0644); err != nil {
		t.Fatalf("Failed to create stale file: %v", err)
	}

	srv, err := NewServer(socketPath, func(cmd Command) (map[string]interface{}, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("NewServer should replace a stale socket: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start on replaced socket: %v", err)
	}
	defer func() { _ = srv.Stop() }()

	client := NewClient(socketPath)
	if _, err := client.Ping(); err != nil {
		t.Fatalf("Failed to ping after socket replacement: %v", err)
	}
}
