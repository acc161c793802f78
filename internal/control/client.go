package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends control commands to a running worker
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new control client
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    10 * time.Second, // Default 10s timeout
	}
}

// SetTimeout sets the client timeout for commands
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends a command to the worker and waits for response
func (c *Client) SendCommand(cmd Command) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to worker (is it running?): %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &resp, nil
}

// Ping checks whether the worker is responsive
func (c *Client) Ping() (*Response, error) {
	cmd := Command{
		Type:      CommandPing,
		Timestamp: time.Now(),
	}
	return c.SendCommand(cmd)
}

// Stats requests the worker's live operation statistics
func (c *Client) Stats() (*Response, error) {
	cmd := Command{
		Type:      CommandStats,
		Timestamp: time.Now(),
	}
	return c.SendCommand(cmd)
}

// State requests the worker's current loop state
func (c *Client) State() (*Response, error) {
	cmd := Command{
		Type:      CommandState,
		Timestamp: time.Now(),
	}
	return c.SendCommand(cmd)
}
