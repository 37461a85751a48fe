package tracking

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/studyeyes/go-tracker/pkg/telemetry"
)

// Generator is the synthetic telemetry source. It emits one frame per tick
// with smooth pseudo-periodic signals so the pipeline, and in particular
// the alert deriver's gating, can be exercised without a camera or a
// backend.
//
// The three signals are independently phased sine waves plus uniform
// noise; they never peak or trough together. Pausing stops tick emission
// but preserves the waveform phase, so a resumed session continues the
// same curves.
type Generator struct {
	cfg    *Config
	clk    clock.Clock
	logger *slog.Logger
	norm   *telemetry.Normalizer

	mu        sync.Mutex
	rng       *rand.Rand
	sessionID string
	running   bool
	paused    bool
	closed    bool
	gen       int // invalidates stale tick timers
	elapsed   time.Duration
	timer     *clock.Timer

	frameFn     func(telemetry.Frame)
	lifecycleFn func(LifecycleEvent)
	errFn       func(error)
}

// NewGenerator creates a synthetic source.
func NewGenerator(opts ...Option) *Generator {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:    cfg,
		clk:    cfg.Clock,
		logger: cfg.Logger,
		norm:   telemetry.NewNormalizer(cfg.Clock.Now),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Ready implements Source. The generator needs no connection.
func (g *Generator) Ready() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	return nil
}

// Start implements Source: begins tick emission for the session.
func (g *Generator) Start(sessionID, _ string) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	if g.running {
		g.mu.Unlock()
		return ErrSessionActive
	}
	g.running = true
	g.paused = false
	g.sessionID = sessionID
	g.elapsed = 0
	g.gen++
	gen := g.gen
	g.armLocked(gen)
	now := g.clk.Now()
	g.mu.Unlock()

	g.logger.Info("synthetic tracking started",
		"session_id", sessionID,
		"tick", g.cfg.Tick,
	)
	g.emitLifecycle(LifecycleStarted, sessionID, now)
	return nil
}

// Stop implements Source: ends the session and cancels the tick timer.
// A stale tick firing after Stop is a no-op.
func (g *Generator) Stop(sessionID string) error {
	g.mu.Lock()
	if !g.running || g.sessionID != sessionID {
		g.mu.Unlock()
		return ErrInvalidTransition
	}
	g.running = false
	g.paused = false
	g.sessionID = ""
	g.gen++
	g.disarmLocked()
	now := g.clk.Now()
	g.mu.Unlock()

	g.logger.Info("synthetic tracking stopped", "session_id", sessionID)
	g.emitLifecycle(LifecycleStopped, sessionID, now)
	return nil
}

// Pause implements Source: halts tick emission, keeps the phase.
func (g *Generator) Pause(sessionID string) error {
	g.mu.Lock()
	if !g.running || g.paused || g.sessionID != sessionID {
		g.mu.Unlock()
		return ErrInvalidTransition
	}
	g.paused = true
	g.gen++
	g.disarmLocked()
	now := g.clk.Now()
	g.mu.Unlock()

	g.emitLifecycle(LifecyclePaused, sessionID, now)
	return nil
}

// Resume implements Source: continues from the preserved phase.
func (g *Generator) Resume(sessionID string) error {
	g.mu.Lock()
	if !g.running || !g.paused || g.sessionID != sessionID {
		g.mu.Unlock()
		return ErrInvalidTransition
	}
	g.paused = false
	g.gen++
	g.armLocked(g.gen)
	now := g.clk.Now()
	g.mu.Unlock()

	g.emitLifecycle(LifecycleResumed, sessionID, now)
	return nil
}

// OnFrame implements Source.
func (g *Generator) OnFrame(fn func(telemetry.Frame)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frameFn = fn
}

// OnLifecycle implements Source.
func (g *Generator) OnLifecycle(fn func(LifecycleEvent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lifecycleFn = fn
}

// OnError implements Source. The generator never produces errors but the
// callback is accepted so it is a strict drop-in for the live client.
func (g *Generator) OnError(fn func(error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errFn = fn
}

// Close implements Source.
func (g *Generator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.running = false
	g.gen++
	g.disarmLocked()
	return nil
}

// armLocked schedules the next tick. Caller holds mu.
func (g *Generator) armLocked(gen int) {
	g.timer = g.clk.AfterFunc(g.cfg.Tick, func() {
		g.tick(gen)
	})
}

func (g *Generator) disarmLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// tick emits one frame and re-arms. gen guards against timers that fire
// after Stop, Pause or Close.
func (g *Generator) tick(gen int) {
	g.mu.Lock()
	if gen != g.gen || !g.running || g.paused || g.closed {
		g.mu.Unlock()
		return
	}
	g.elapsed += g.cfg.Tick
	sample := g.sampleLocked()
	fn := g.frameFn
	g.armLocked(gen)
	g.mu.Unlock()

	if fn != nil {
		fn(g.norm.FromSample(sample))
	}
}

// sampleLocked builds one raw sample at the current phase. Caller holds mu.
func (g *Generator) sampleLocked() telemetry.Sample {
	t := g.elapsed
	noise := func() float64 {
		return (g.rng.Float64()*2 - 1) * g.cfg.NoiseAmplitude
	}

	strain := g.cfg.Strain.Value(t) + noise()

	var distraction telemetry.DistractionType
	if g.rng.Float64() < g.cfg.DistractionProb {
		choices := []telemetry.DistractionType{
			telemetry.DistractionPhone,
			telemetry.DistractionAway,
			telemetry.DistractionFatigue,
		}
		distraction = choices[g.rng.Intn(len(choices))]
	}

	fatigue := telemetry.FatigueAlert
	switch {
	case strain > 0.6:
		fatigue = telemetry.FatigueVeryTired
	case strain > 0.3:
		fatigue = telemetry.FatigueTired
	}

	return telemetry.Sample{
		SessionID: g.sessionID,
		At:        g.clk.Now(),
		Attention: g.cfg.Attention.Value(t) + noise(),
		Strain:    strain,
		Posture:   g.cfg.Posture.Value(t) + noise(),

		// Slow centered gaze drift, the same pattern a resting user shows.
		GazeX: 0.2*math.Sin(t.Seconds()*0.5) + noise(),
		GazeY: 0.1*math.Cos(t.Seconds()*0.3) + noise(),

		LeftEye:  0.75 + g.rng.Float64()*0.2,
		RightEye: 0.75 + g.rng.Float64()*0.2,
		Blink:    g.rng.Float64() < g.cfg.BlinkProb,

		Pitch: (g.rng.Float64()*2 - 1) * 5,
		Yaw:   (g.rng.Float64()*2 - 1) * 10,
		Roll:  (g.rng.Float64()*2 - 1) * 3,

		Distraction: distraction,
		Fatigue:     fatigue,
		Confidence:  0.8 + g.rng.Float64()*0.15,
	}
}

func (g *Generator) emitLifecycle(kind LifecycleKind, sessionID string, ts time.Time) {
	g.mu.Lock()
	fn := g.lifecycleFn
	g.mu.Unlock()
	if fn != nil {
		fn(LifecycleEvent{Kind: kind, SessionID: sessionID, Timestamp: ts})
	}
}
