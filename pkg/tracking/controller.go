package tracking

import (
	"log/slog"
	"sync"
	"time"

	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/telemetry"
)

// SessionStatus is the session state machine's current state.
type SessionStatus int

const (
	SessionIdle SessionStatus = iota
	SessionTracking
	SessionPaused
	SessionStopped
)

// String returns the status name.
func (s SessionStatus) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionTracking:
		return "tracking"
	case SessionPaused:
		return "paused"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its name.
func (s SessionStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// SessionState is a snapshot of the session state machine, published on the
// session topic after every transition.
type SessionState struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at,omitempty"`
}

// Controller owns the session state machine and gates the telemetry flow:
// frames from the source reach the bus only while the session is tracking.
// Invalid transitions are rejected without touching the current state.
type Controller struct {
	src    Source
	bus    *bus.Bus
	logger *slog.Logger

	mu      sync.Mutex
	state   SessionState
	dropped uint64 // frames gated while not tracking
}

// NewController wires a source to the bus. Options beyond WithLogger are
// ignored; source behavior is configured on the source itself.
func NewController(src Source, b *bus.Bus, opts ...Option) *Controller {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	c := &Controller{
		src:    src,
		bus:    b,
		logger: cfg.Logger,
		state:  SessionState{Status: SessionIdle},
	}

	src.OnFrame(c.handleFrame)
	src.OnLifecycle(c.handleLifecycle)
	src.OnError(c.handleError)
	return c
}

// State returns the current session snapshot.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartTracking starts a new session. Only one session can be active at a
// time: starting while tracking or paused returns ErrSessionActive. Starting
// after a stop is allowed and begins a fresh session.
func (c *Controller) StartTracking(sessionID, credential string) error {
	c.mu.Lock()
	if c.state.Status == SessionTracking || c.state.Status == SessionPaused {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.mu.Unlock()

	if err := c.src.Ready(); err != nil {
		return err
	}
	if err := c.src.Start(sessionID, credential); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = SessionState{
		SessionID: sessionID,
		Status:    SessionTracking,
		StartedAt: time.Now(),
	}
	state := c.state
	c.mu.Unlock()

	c.logger.Info("session started", "session_id", sessionID)
	c.bus.Publish(bus.TopicSession, state)
	return nil
}

// PauseTracking pauses the active session. Valid only from tracking.
func (c *Controller) PauseTracking() error {
	c.mu.Lock()
	if c.state.Status != SessionTracking {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	sessionID := c.state.SessionID
	c.mu.Unlock()

	if err := c.src.Pause(sessionID); err != nil {
		return err
	}

	state := c.transition(SessionPaused)
	c.logger.Info("session paused", "session_id", sessionID)
	c.bus.Publish(bus.TopicSession, state)
	return nil
}

// ResumeTracking resumes a paused session. Valid only from paused.
func (c *Controller) ResumeTracking() error {
	c.mu.Lock()
	if c.state.Status != SessionPaused {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	sessionID := c.state.SessionID
	c.mu.Unlock()

	if err := c.src.Resume(sessionID); err != nil {
		return err
	}

	state := c.transition(SessionTracking)
	c.logger.Info("session resumed", "session_id", sessionID)
	c.bus.Publish(bus.TopicSession, state)
	return nil
}

// StopTracking ends the session. Valid from tracking or paused. The session
// id is retired; a later StartTracking must use a new one.
func (c *Controller) StopTracking() error {
	c.mu.Lock()
	if c.state.Status != SessionTracking && c.state.Status != SessionPaused {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	sessionID := c.state.SessionID
	c.mu.Unlock()

	if err := c.src.Stop(sessionID); err != nil {
		return err
	}

	state := c.transition(SessionStopped)
	c.logger.Info("session stopped", "session_id", sessionID)
	c.bus.Publish(bus.TopicSession, state)
	return nil
}

// transition swaps the status and returns the new snapshot.
func (c *Controller) transition(to SessionStatus) SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Status = to
	return c.state
}

// handleFrame gates telemetry on session state: frames flow to the bus only
// while tracking, and only for the active session. Frames arriving between
// a pause and the backend acknowledging it are dropped silently.
func (c *Controller) handleFrame(f telemetry.Frame) {
	c.mu.Lock()
	forward := c.state.Status == SessionTracking && c.state.SessionID == f.SessionID
	if !forward {
		c.dropped++
	}
	c.mu.Unlock()

	if forward {
		c.bus.Publish(bus.TopicTelemetry, f)
	}
}

func (c *Controller) handleLifecycle(ev LifecycleEvent) {
	c.logger.Debug("source lifecycle event",
		"kind", ev.Kind,
		"session_id", ev.SessionID,
	)
}

func (c *Controller) handleError(err error) {
	c.logger.Warn("source error", "error", err)
	c.bus.Publish(bus.TopicError, err)
}

// DroppedFrames reports how many frames were gated off the bus because no
// tracking session matched them.
func (c *Controller) DroppedFrames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
