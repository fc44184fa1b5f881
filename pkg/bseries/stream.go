package bseries

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultInitialBackoff = 10 * time.Second
	defaultMaxBackoff     = 600 * time.Second

	// read deadline multiplier applied to the server ping interval; a
	// connection with no traffic past this window is considered stale
	watchdogFactor = 1.2
)

// StreamHandler receives decoded stream activity. Callbacks run on the
// stream's reader goroutine and must not block.
type StreamHandler interface {
	OnDeviceUpdate(update *DeviceUpdate)
	OnStreamConnected()
	OnStreamDisconnected(err error)
	OnTokenRefreshNeeded()
}

// StreamConfig configures a device event stream.
type StreamConfig struct {
	BaseURL        string
	Token          string
	Serials        []string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *zap.Logger
}

// Stream maintains a socket.io connection to the /devices namespace,
// reconnecting with exponential backoff and forwarding device events to a
// StreamHandler.
type Stream struct {
	cfg     StreamConfig
	handler StreamHandler
	logger  *zap.Logger

	mu           sync.Mutex
	token        string
	tokenExp     time.Time
	refreshAsked bool
	conn         *websocket.Conn
	pendingScans []string
	attempt      int

	// gorilla/websocket allows a single concurrent writer; pong replies on
	// the reader goroutine and scan requests from callers must not collide
	writeMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

func NewStream(cfg StreamConfig, handler StreamHandler) *Stream {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		cfg:      cfg,
		handler:  handler,
		logger:   logger,
		token:    cfg.Token,
		tokenExp: tokenExpiry(cfg.Token),
	}
}

// Start launches the connect/read loop. It returns immediately.
func (s *Stream) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop closes the connection and waits for the run loop to exit.
func (s *Stream) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.closeConn()
	<-s.done
}

// UpdateToken swaps in a freshly refreshed access token. The current
// connection keeps its session; the new token is used on the next login.
func (s *Stream) UpdateToken(token string) {
	s.mu.Lock()
	s.token = token
	s.tokenExp = tokenExpiry(token)
	s.refreshAsked = false
	s.mu.Unlock()
}

// RequestScan asks a device to emit its base_info. Queued if disconnected.
func (s *Stream) RequestScan(serial string) {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.pendingScans = append(s.pendingScans, serial)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	frame, err := scanFrame(serial)
	if err == nil {
		err = s.writeFrame(conn, frame)
	}
	if err != nil {
		s.logger.Warn("scan request failed", zap.String("serial", serial), zap.Error(err))
	}
}

func (s *Stream) writeFrame(conn *websocket.Conn, frame string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		s.handler.OnStreamDisconnected(err)
		s.mu.Lock()
		s.attempt++
		attempt := s.attempt
		s.mu.Unlock()
		delay := backoffDelay(s.cfg.InitialBackoff, s.cfg.MaxBackoff, attempt)
		s.logger.Info("stream reconnect scheduled",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	url := websocketURL(s.cfg.BaseURL)
	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("bseries: dial %s: %w", url, err)
	}
	defer conn.Close()

	hs, err := s.openSession(conn)
	if err != nil {
		return err
	}
	deadline := time.Duration(float64(hs.PingIntervalMillis)*watchdogFactor) * time.Millisecond

	s.mu.Lock()
	s.conn = conn
	s.attempt = 0
	pending := s.pendingScans
	s.pendingScans = nil
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	s.handler.OnStreamConnected()
	for _, serial := range pending {
		s.RequestScan(serial)
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("bseries: read: %w", err)
		}
		if err := s.handleFrame(conn, string(data)); err != nil {
			return err
		}
		s.checkTokenExpiry()
	}
}

// openSession performs the engine.io handshake and the namespace login and
// subscribe sequence on a fresh connection.
func (s *Stream) openSession(conn *websocket.Conn) (*handshake, error) {
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	_, first, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("bseries: read handshake: %w", err)
	}
	hs, err := decodeHandshake(string(first))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	login, err := loginFrame(token)
	if err != nil {
		return nil, err
	}
	if err := s.writeFrame(conn, login); err != nil {
		return nil, fmt.Errorf("bseries: send login: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	_, ack, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("bseries: read login ack: %w", err)
	}
	ackFrame := string(ack)
	if !strings.HasPrefix(ackFrame, nsConnectPrefix) || looksLikeAuthFailure(ackFrame) {
		s.handler.OnTokenRefreshNeeded()
		return nil, fmt.Errorf("bseries: namespace login rejected: %s", ackFrame)
	}

	sub, err := subscribeFrame(s.cfg.Serials)
	if err != nil {
		return nil, err
	}
	if err := s.writeFrame(conn, sub); err != nil {
		return nil, fmt.Errorf("bseries: send subscribe: %w", err)
	}
	s.logger.Info("stream session established",
		zap.String("sid", hs.SID), zap.Int("devices", len(s.cfg.Serials)))
	return hs, nil
}

func (s *Stream) handleFrame(conn *websocket.Conn, frame string) error {
	switch {
	case frame == framePing:
		return s.writeFrame(conn, framePong)
	case frame == frameDisconnect:
		return fmt.Errorf("bseries: server requested disconnect")
	case strings.HasPrefix(frame, nsDisconnectPrefix):
		return fmt.Errorf("bseries: namespace disconnected")
	}
	msg, err := decodeNamespaceMessage(frame)
	if err != nil {
		s.logger.Debug("ignoring frame", zap.String("frame", frame), zap.Error(err))
		return nil
	}
	switch msg.Kind {
	case "event":
		upd, err := decodeDeviceUpdate(msg.Data)
		if err != nil {
			s.logger.Warn("undecodable device event", zap.Error(err))
			return nil
		}
		s.handler.OnDeviceUpdate(upd)
	case "exception":
		exc := decodeException(msg.Data)
		if exc.isForbidden() {
			s.handler.OnTokenRefreshNeeded()
			return fmt.Errorf("bseries: session rejected: %s", exc.Message)
		}
		s.logger.Warn("stream exception", zap.String("message", exc.Message))
	default:
		s.logger.Debug("unknown stream message", zap.String("kind", msg.Kind))
	}
	return nil
}

// checkTokenExpiry signals the handler once when the current token is due
// for a refresh. UpdateToken rearms the signal.
func (s *Stream) checkTokenExpiry() {
	s.mu.Lock()
	due := !s.tokenExp.IsZero() && !s.refreshAsked &&
		time.Now().Add(tokenRefreshMargin).After(s.tokenExp)
	if due {
		s.refreshAsked = true
	}
	s.mu.Unlock()
	if due {
		s.handler.OnTokenRefreshNeeded()
	}
}

func (s *Stream) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// backoffDelay is initial*2^(attempt-1) with 0.8..1.2 jitter, capped at max.
func backoffDelay(initial, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := initial
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	jitter := 0.8 + rand.Float64()*0.4
	d = time.Duration(float64(d) * jitter)
	if d > max {
		d = max
	}
	return d
}

// websocketURL derives the engine.io endpoint from the REST base URL.
func websocketURL(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	url := baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimSuffix(url, "/") + "/socket.io/?EIO=4&transport=websocket"
}
