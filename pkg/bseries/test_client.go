package bseries

import (
	"context"
	"sync"
)

// TestClient is an in-memory stand-in for Client used by actor tests.
type TestClient struct {
	mu sync.Mutex

	DeviceList   []Device
	TokenValue   string
	NeedsRefresh bool

	LoginErr   error
	DevicesErr error
	CommandErr error

	LoginCount int
	Sent       []SentCommand
}

// SentCommand records one SendCommand call.
type SentCommand struct {
	DeviceID int
	Command  Command
}

func NewTestClient(devices []Device) *TestClient {
	return &TestClient{DeviceList: devices, TokenValue: "test-token"}
}

func (c *TestClient) Login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LoginErr != nil {
		return "", c.LoginErr
	}
	c.LoginCount++
	c.NeedsRefresh = false
	return c.TokenValue, nil
}

func (c *TestClient) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.TokenValue == "" {
		return "", ErrNoToken
	}
	return c.TokenValue, nil
}

func (c *TestClient) TokenNeedsRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.NeedsRefresh
}

// SetNeedsRefresh marks the stored token as stale.
func (c *TestClient) SetNeedsRefresh(needs bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NeedsRefresh = needs
}

func (c *TestClient) Devices(ctx context.Context) ([]Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DevicesErr != nil {
		return nil, c.DevicesErr
	}
	return c.DeviceList, nil
}

func (c *TestClient) SendCommand(ctx context.Context, deviceID int, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CommandErr != nil {
		return c.CommandErr
	}
	c.Sent = append(c.Sent, SentCommand{DeviceID: deviceID, Command: cmd})
	return nil
}

// SentCommands returns a copy of the recorded commands.
func (c *TestClient) SentCommands() []SentCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentCommand, len(c.Sent))
	copy(out, c.Sent)
	return out
}

// TestStream is a controllable stand-in for Stream. Tests drive it by
// calling the handler methods through EmitUpdate and friends.
type TestStream struct {
	mu      sync.Mutex
	handler StreamHandler

	Started bool
	Stopped bool
	Tokens  []string
	Scans   []string
}

func NewTestStream(handler StreamHandler) *TestStream {
	return &TestStream{handler: handler}
}

func (s *TestStream) Start(ctx context.Context) {
	s.mu.Lock()
	s.Started = true
	s.mu.Unlock()
	s.handler.OnStreamConnected()
}

func (s *TestStream) Stop() {
	s.mu.Lock()
	s.Stopped = true
	s.mu.Unlock()
}

func (s *TestStream) UpdateToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tokens = append(s.Tokens, token)
}

func (s *TestStream) RequestScan(serial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scans = append(s.Scans, serial)
}

func (s *TestStream) EmitUpdate(update *DeviceUpdate) {
	s.handler.OnDeviceUpdate(update)
}

func (s *TestStream) EmitDisconnect(err error) {
	s.handler.OnStreamDisconnected(err)
}

func (s *TestStream) EmitTokenRefreshNeeded() {
	s.handler.OnTokenRefreshNeeded()
}
