package tracking

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v5"

	"github.com/studyeyes/go-tracker/pkg/bus"
)

// ConnStatus is the connection lifecycle state.
type ConnStatus int

const (
	StatusDisconnected ConnStatus = iota
	StatusConnecting
	StatusConnected
)

func (s ConnStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form for bridge consumers.
func (s ConnStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ErrMaxReconnectReason is the LastError value of the terminal state after
// the reconnect budget is exhausted.
const ErrMaxReconnectReason = "max_reconnect_attempts"

// ConnState is the connection manager's published state. Attempt resets to
// zero on every successful connect.
type ConnState struct {
	Status    ConnStatus `json:"status"`
	Attempt   int        `json:"attempt"`
	LastError string     `json:"last_error,omitempty"`
}

// Transport is one established connection to the tracking backend.
// Send is safe for concurrent use; Receive must be called from a single
// goroutine.
type Transport interface {
	Send(msg any) error
	Receive() ([]byte, error)
	Close() error
}

// Dialer opens a Transport. The context carries the attempt timeout.
type Dialer func(ctx context.Context) (Transport, error)

// ConnManager owns the transport's connect/disconnect/reconnect lifecycle.
//
// Reconnects after an unsolicited drop follow an exponential policy:
// the first retry waits BaseBackoff, each further retry doubles the wait,
// and the budget is MaxReconnectAttempts. Exhausting the budget publishes
// one terminal Disconnected state with LastError set to
// ErrMaxReconnectReason and stops retrying until an explicit Connect.
//
// Every distinct state transition is published exactly once on the
// connection topic; transport failures never cross component boundaries as
// errors.
type ConnManager struct {
	cfg    *Config
	dial   Dialer
	bus    *bus.Bus
	clk    clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	state       ConnState
	transport   Transport
	policy      *backoff.ExponentialBackOff
	retryTimer  *clock.Timer
	attempts    int
	gen         int // invalidates stale retry timers
	manual      bool
	closed      bool
	onConnected func(Transport)
}

// NewConnManager creates a manager that dials with dial and publishes
// state transitions on b's connection topic.
func NewConnManager(cfg *Config, dial Dialer, b *bus.Bus) *ConnManager {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.BaseBackoff
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = cfg.BaseBackoff << 10

	return &ConnManager{
		cfg:    cfg,
		dial:   dial,
		bus:    b,
		clk:    cfg.Clock,
		logger: cfg.Logger,
		policy: policy,
	}
}

// OnConnected sets the callback invoked with each freshly established
// transport. Set it before Connect.
func (m *ConnManager) OnConnected(fn func(Transport)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// State returns the current connection state.
func (m *ConnManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transport returns the live transport, or nil while disconnected.
func (m *ConnManager) Transport() Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

// Connect initiates a transport attempt. A failed attempt enters the
// standard backoff path; the outcome surfaces only as status events.
func (m *ConnManager) Connect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state.Status == StatusConnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.cancelRetryLocked()
	m.gen++
	g := m.gen
	m.manual = false
	m.attempts = 0
	m.policy.Reset()
	m.mu.Unlock()

	m.attempt(g)
	return nil
}

// Disconnect tears down the transport and clears all pending retry timers.
// Idempotent; publishes Disconnected.
func (m *ConnManager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.manual = true
	m.gen++
	m.cancelRetryLocked()
	t := m.transport
	m.transport = nil
	m.attempts = 0
	m.policy.Reset()
	changed := m.setStateLocked(ConnState{Status: StatusDisconnected})
	state := m.state
	m.mu.Unlock()

	if t != nil {
		t.Close()
	}
	m.publish(changed, state)
}

// Close disconnects and permanently retires the manager.
func (m *ConnManager) Close() error {
	m.Disconnect()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// ConnectionLost reports an unsolicited transport drop (read failure,
// peer close). The manager tears the transport down, publishes
// Disconnected and schedules a reconnect.
func (m *ConnManager) ConnectionLost(err error) {
	m.mu.Lock()
	if m.closed || m.manual || m.state.Status != StatusConnected {
		m.mu.Unlock()
		return
	}
	t := m.transport
	m.transport = nil
	m.gen++
	g := m.gen

	reason := "connection lost"
	if err != nil {
		reason = err.Error()
	}
	changed := m.setStateLocked(ConnState{Status: StatusDisconnected, LastError: reason})
	state := m.state
	m.scheduleRetryLocked(g)
	m.mu.Unlock()

	if t != nil {
		t.Close()
	}
	m.publish(changed, state)
}

// attempt performs one dial. Runs either on the caller of Connect or on a
// retry timer; g guards against stale timers.
func (m *ConnManager) attempt(g int) {
	m.mu.Lock()
	if m.closed || m.manual || g != m.gen {
		m.mu.Unlock()
		return
	}
	m.attempts++
	n := m.attempts
	changed := m.setStateLocked(ConnState{Status: StatusConnecting, Attempt: n})
	state := m.state
	m.mu.Unlock()
	m.publish(changed, state)

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	t, err := m.dial(ctx)
	cancel()

	m.mu.Lock()
	if m.closed || m.manual || g != m.gen {
		m.mu.Unlock()
		if t != nil {
			t.Close()
		}
		return
	}

	if err != nil {
		m.logger.Warn("connection attempt failed",
			"attempt", n,
			"error", err,
		)
		if n >= m.cfg.MaxReconnectAttempts {
			changed = m.setStateLocked(ConnState{
				Status:    StatusDisconnected,
				Attempt:   n,
				LastError: ErrMaxReconnectReason,
			})
			state = m.state
			m.mu.Unlock()
			m.publish(changed, state)
			return
		}
		changed = m.setStateLocked(ConnState{
			Status:    StatusDisconnected,
			Attempt:   n,
			LastError: err.Error(),
		})
		state = m.state
		m.scheduleRetryLocked(g)
		m.mu.Unlock()
		m.publish(changed, state)
		return
	}

	m.transport = t
	m.attempts = 0
	m.policy.Reset()
	changed = m.setStateLocked(ConnState{Status: StatusConnected})
	state = m.state
	onConnected := m.onConnected
	m.mu.Unlock()
	m.publish(changed, state)

	m.logger.Info("connected to tracking backend", "endpoint", m.cfg.Endpoint)
	if onConnected != nil {
		onConnected(t)
	}
}

// scheduleRetryLocked arms the retry timer. Caller holds mu.
func (m *ConnManager) scheduleRetryLocked(g int) {
	delay := m.policy.NextBackOff()
	m.logger.Debug("scheduling reconnect", "delay", delay)
	m.retryTimer = m.clk.AfterFunc(delay, func() {
		m.attempt(g)
	})
}

func (m *ConnManager) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// setStateLocked records a transition and reports whether it changed.
// Caller holds mu and publishes after unlocking, so a subscriber can call
// back into the manager without deadlocking.
func (m *ConnManager) setStateLocked(s ConnState) bool {
	if m.state == s {
		return false
	}
	m.state = s
	return true
}

func (m *ConnManager) publish(changed bool, s ConnState) {
	if changed && m.bus != nil {
		m.bus.Publish(bus.TopicConnection, s)
	}
}
