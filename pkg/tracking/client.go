package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/protocol"
	"github.com/studyeyes/go-tracker/pkg/telemetry"
)

// Client is the live telemetry source: a websocket client for the tracking
// backend. Connection lifecycle is delegated to a ConnManager; the client
// owns the read pump, normalization and control messages.
type Client struct {
	cfg    *Config
	logger *slog.Logger
	norm   *telemetry.Normalizer
	conn   *ConnManager

	mu          sync.Mutex
	sessionID   string
	token       string
	frameFn     func(telemetry.Frame)
	lifecycleFn func(LifecycleEvent)
	errFn       func(error)
}

// NewClient creates a live source publishing connection state on b.
// Call Connect before starting a session.
func NewClient(b *bus.Bus, opts ...Option) *Client {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	c := &Client{
		cfg:    cfg,
		logger: cfg.Logger,
		norm:   telemetry.NewNormalizer(cfg.Clock.Now),
	}
	c.conn = NewConnManager(cfg, c.dialWS, b)
	c.conn.OnConnected(func(t Transport) {
		go c.readPump(t)
	})
	return c
}

// Conn exposes the connection manager for explicit Connect/Disconnect.
func (c *Client) Conn() *ConnManager {
	return c.conn
}

// Connect establishes the backend connection.
func (c *Client) Connect() error {
	return c.conn.Connect()
}

// Ready implements Source.
func (c *Client) Ready() error {
	if c.conn.State().Status != StatusConnected {
		return ErrNotConnected
	}
	return nil
}

// Start implements Source: sends start_tracking for the session.
func (c *Client) Start(sessionID, credential string) error {
	if err := c.Ready(); err != nil {
		return err
	}

	c.mu.Lock()
	c.sessionID = sessionID
	c.token = credential
	c.mu.Unlock()

	msg, err := protocol.NewStartTrackingMessage(sessionID, credential)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// Stop implements Source: sends stop_tracking for the session.
func (c *Client) Stop(sessionID string) error {
	if err := c.Ready(); err != nil {
		return err
	}

	c.mu.Lock()
	token := c.token
	c.sessionID = ""
	c.token = ""
	c.mu.Unlock()

	msg, err := protocol.NewStopTrackingMessage(sessionID, token)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// Pause implements Source.
func (c *Client) Pause(sessionID string) error {
	if err := c.Ready(); err != nil {
		return err
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	msg, err := protocol.NewPauseTrackingMessage(sessionID, token)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// Resume implements Source.
func (c *Client) Resume(sessionID string) error {
	if err := c.Ready(); err != nil {
		return err
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	msg, err := protocol.NewResumeTrackingMessage(sessionID, token)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// OnFrame implements Source.
func (c *Client) OnFrame(fn func(telemetry.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameFn = fn
}

// OnLifecycle implements Source.
func (c *Client) OnLifecycle(fn func(LifecycleEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lifecycleFn = fn
}

// OnError implements Source.
func (c *Client) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errFn = fn
}

// Close implements Source: tears down the connection for good.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(msg *protocol.Message) error {
	t := c.conn.Transport()
	if t == nil {
		return ErrNotConnected
	}
	if err := t.Send(msg); err != nil {
		return &ConnectionError{Reason: "send failed", Cause: err}
	}
	return nil
}

// readPump consumes one transport until it fails. Frames are normalized
// and handed to the frame callback in receive order.
func (c *Client) readPump(t Transport) {
	for {
		data, err := t.Receive()
		if err != nil {
			c.conn.ConnectionLost(err)
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.emitError(&ConnectionError{Reason: "unparseable message", Cause: err})
			continue
		}
		c.handleMessage(t, msg)
	}
}

func (c *Client) handleMessage(t Transport, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeTrackingData:
		var d protocol.TrackingData
		if err := msg.ParseData(&d); err != nil {
			c.emitError(&ConnectionError{Reason: "bad tracking_data payload", Cause: err})
			return
		}

		c.mu.Lock()
		fallback := c.sessionID
		fn := c.frameFn
		c.mu.Unlock()

		frame, err := c.norm.FromWire(&d, fallback)
		if err != nil {
			c.emitError(err)
			return
		}
		if fn != nil {
			fn(frame)
		}

	case protocol.TypeTrackingStarted:
		c.emitLifecycle(LifecycleStarted, msg)
	case protocol.TypeTrackingStopped:
		c.emitLifecycle(LifecycleStopped, msg)
	case protocol.TypeTrackingPaused:
		c.emitLifecycle(LifecyclePaused, msg)
	case protocol.TypeTrackingResumed:
		c.emitLifecycle(LifecycleResumed, msg)

	case protocol.TypeConnected:
		c.logger.Debug("backend handshake complete")

	case protocol.TypeError:
		var d protocol.ErrorData
		if err := msg.ParseData(&d); err == nil && d.Message != "" {
			c.emitError(&ConnectionError{Reason: d.Message})
		}

	case protocol.TypePing:
		var ping protocol.PingData
		if err := msg.ParseData(&ping); err == nil {
			if pong, err := protocol.NewPongMessage(ping); err == nil {
				_ = t.Send(pong)
			}
		}
	}
}

func (c *Client) emitLifecycle(kind LifecycleKind, msg *protocol.Message) {
	var d protocol.TrackingStartedData
	_ = msg.ParseData(&d)

	c.mu.Lock()
	fn := c.lifecycleFn
	sessionID := d.SessionID
	if sessionID == "" {
		sessionID = c.sessionID
	}
	c.mu.Unlock()

	if fn != nil {
		fn(LifecycleEvent{
			Kind:      kind,
			SessionID: sessionID,
			Timestamp: c.cfg.Clock.Now(),
		})
	}
}

func (c *Client) emitError(err error) {
	c.mu.Lock()
	fn := c.errFn
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// dialWS opens the websocket transport to the configured endpoint.
func (c *Client) dialWS(ctx context.Context) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.ConnectTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.Endpoint, nil)
	if err != nil {
		return nil, &ConnectionError{Reason: "dial " + c.cfg.Endpoint, Cause: err}
	}
	return &wsTransport{conn: conn, writeTimeout: c.cfg.WriteTimeout}, nil
}

// wsTransport adapts a gorilla websocket connection to Transport.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (t *wsTransport) Send(msg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteJSON(msg)
}

func (t *wsTransport) Receive() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
