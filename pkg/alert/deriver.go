package alert

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/telemetry"
	"github.com/studyeyes/go-tracker/pkg/tracking"
)

// Thresholds holds the per-metric alert thresholds.
type Thresholds struct {
	// MinAttention raises low_attention when the score drops below it.
	MinAttention float64

	// MaxEyeStrain raises eye_strain when the level exceeds it.
	MaxEyeStrain float64

	// MinPosture raises posture when the score drops below it.
	MinPosture float64
}

// Config configures a Deriver.
type Config struct {
	Thresholds Thresholds

	// Cooldown is the minimum gap between two alerts of the same kind for
	// the same session, measured on frame timestamps.
	Cooldown time.Duration

	// RingCapacity bounds the per-session recent-alert window.
	RingCapacity int

	// OnSuppressed is invoked for every alert the cooldown gate blocks.
	// Optional; runs outside the deriver's lock.
	OnSuppressed func(sessionID string, kind Kind)

	Logger *slog.Logger
}

// DefaultConfig returns the deriver defaults.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			MinAttention: 0.6,
			MaxEyeStrain: 20,
			MinPosture:   70,
		},
		Cooldown:     2 * time.Second,
		RingCapacity: 10,
	}
}

// sessionState is the deriver's per-session bookkeeping. The cooldown map
// survives Clear on purpose: clearing the visible window must not re-open
// the gate.
type sessionState struct {
	lastByKind map[Kind]time.Time
	ring       *ring
}

// Deriver evaluates frames against thresholds and emits gated alerts.
// Safe for concurrent use, though the pipeline feeds it from a single
// goroutine per session so cooldowns see non-decreasing timestamps.
type Deriver struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState

	bus  *bus.Bus
	subs []bus.Subscription
}

// NewDeriver creates a Deriver. Zero-valued config fields fall back to
// DefaultConfig values.
func NewDeriver(cfg Config) *Deriver {
	def := DefaultConfig()
	if cfg.Thresholds.MinAttention == 0 {
		cfg.Thresholds.MinAttention = def.Thresholds.MinAttention
	}
	if cfg.Thresholds.MaxEyeStrain == 0 {
		cfg.Thresholds.MaxEyeStrain = def.Thresholds.MaxEyeStrain
	}
	if cfg.Thresholds.MinPosture == 0 {
		cfg.Thresholds.MinPosture = def.Thresholds.MinPosture
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.RingCapacity == 0 {
		cfg.RingCapacity = def.RingCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Deriver{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*sessionState),
	}
}

// Attach subscribes the deriver to the pipeline: telemetry frames drive
// Evaluate, with derived alerts published on the alert topic, and a session
// reaching Stopped has its bookkeeping dropped (ids are never reused).
// Detach removes the subscriptions.
func (d *Deriver) Attach(b *bus.Bus) {
	d.bus = b
	d.subs = append(d.subs,
		bus.SubscribeTo(b, bus.TopicTelemetry, func(frame telemetry.Frame) {
			for _, a := range d.Evaluate(frame) {
				b.Publish(bus.TopicAlert, a)
			}
		}),
		bus.SubscribeTo(b, bus.TopicSession, func(s tracking.SessionState) {
			if s.Status == tracking.SessionStopped {
				d.Drop(s.SessionID)
			}
		}),
	)
}

// Detach removes the deriver's subscriptions.
func (d *Deriver) Detach() {
	for _, s := range d.subs {
		d.bus.Unsubscribe(s)
	}
	d.subs = nil
}

// Evaluate checks one frame against all thresholds and returns the alerts
// that pass the per-kind cooldown gate. Emitted alerts are also appended to
// the session's recent window.
func (d *Deriver) Evaluate(frame telemetry.Frame) []Alert {
	out, suppressed := d.evaluate(frame)
	if d.cfg.OnSuppressed != nil {
		for _, kind := range suppressed {
			d.cfg.OnSuppressed(frame.SessionID, kind)
		}
	}
	return out
}

func (d *Deriver) evaluate(frame telemetry.Frame) (out []Alert, suppressed []Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := d.sessions[frame.SessionID]
	if state == nil {
		state = &sessionState{
			lastByKind: make(map[Kind]time.Time),
			ring:       newRing(d.cfg.RingCapacity),
		}
		d.sessions[frame.SessionID] = state
	}

	emit := func(kind Kind, severity Severity, message string) {
		last, seen := state.lastByKind[kind]
		if seen && frame.Timestamp.Sub(last) < d.cfg.Cooldown {
			suppressed = append(suppressed, kind)
			return
		}
		state.lastByKind[kind] = frame.Timestamp

		a := newAlert(frame.SessionID, kind, severity, message, frame.Timestamp)
		state.ring.push(a)
		out = append(out, a)

		d.logger.Debug("alert emitted",
			"session_id", frame.SessionID,
			"kind", string(kind),
			"severity", string(severity),
		)
	}

	t := d.cfg.Thresholds
	if frame.AttentionScore < t.MinAttention {
		emit(KindLowAttention, SeverityWarning,
			fmt.Sprintf("attention dropped to %.2f", frame.AttentionScore))
	}
	if frame.EyeStrainLevel > t.MaxEyeStrain {
		emit(KindEyeStrain, SeverityWarning,
			fmt.Sprintf("eye strain at %.0f, take a break", frame.EyeStrainLevel))
	}
	if frame.PostureScore < t.MinPosture {
		emit(KindPosture, SeverityWarning,
			fmt.Sprintf("posture score at %.0f, sit up", frame.PostureScore))
	}
	if frame.DistractionType != "" && frame.DistractionType != telemetry.DistractionNone {
		emit(KindDistraction, SeverityInfo,
			fmt.Sprintf("distraction detected: %s", frame.DistractionType))
	}

	return out, suppressed
}

// Recent returns the session's bounded recent-alert window, oldest first.
func (d *Deriver) Recent(sessionID string) []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := d.sessions[sessionID]
	if state == nil {
		return nil
	}
	return state.ring.items()
}

// Clear empties the session's visible alert window. Cooldown state is
// unaffected, so clearing does not allow an immediate re-alert.
func (d *Deriver) Clear(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if state := d.sessions[sessionID]; state != nil {
		state.ring = newRing(d.cfg.RingCapacity)
	}
}

// Drop discards all bookkeeping for a session, cooldowns included.
// Call it when the session id is retired; ids are never reused.
func (d *Deriver) Drop(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
}
