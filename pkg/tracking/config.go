package tracking

import (
	"log/slog"
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

// Waveform describes one synthetic signal: base + sin(2πt/period + phase)
// * amplitude, in unit-interval waveform space.
type Waveform struct {
	Base      float64
	Amplitude float64
	Period    time.Duration
	Phase     float64 // radians
}

// Value evaluates the waveform at elapsed time t.
func (w Waveform) Value(t time.Duration) float64 {
	return w.Base + w.Amplitude*math.Sin(2*math.Pi*t.Seconds()/w.Period.Seconds()+w.Phase)
}

// Config holds configuration for tracking sources and the connection
// manager.
type Config struct {
	// Endpoint is the tracking backend websocket URL.
	Endpoint string

	// MaxReconnectAttempts bounds the reconnect budget after a drop.
	MaxReconnectAttempts int

	// BaseBackoff is the first reconnect delay; it doubles per attempt.
	BaseBackoff time.Duration

	// ConnectTimeout caps one connection attempt.
	ConnectTimeout time.Duration

	// WriteTimeout caps one websocket write.
	WriteTimeout time.Duration

	// Tick is the synthetic generator's frame interval.
	Tick time.Duration

	// Attention, Strain and Posture are the generator's signal shapes.
	// Phases differ by default so the signals never peak together.
	Attention Waveform
	Strain    Waveform
	Posture   Waveform

	// DistractionProb is the per-tick probability of a synthetic
	// distraction. Data shaping only; alert gating lives in the deriver.
	DistractionProb float64

	// BlinkProb is the per-tick blink probability.
	BlinkProb float64

	// NoiseAmplitude is the uniform noise added to each signal.
	NoiseAmplitude float64

	// Seed seeds the generator's RNG. Zero means non-deterministic.
	Seed int64

	// Clock drives all timers; swap in a mock for tests.
	Clock clock.Clock

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:             "ws://localhost:5000/tracking",
		MaxReconnectAttempts: 5,
		BaseBackoff:          time.Second,
		ConnectTimeout:       10 * time.Second,
		WriteTimeout:         10 * time.Second,
		Tick:                 time.Second,
		Attention: Waveform{
			Base:      0.72,
			Amplitude: 0.22,
			Period:    60 * time.Second,
			Phase:     0,
		},
		Strain: Waveform{
			Base:      0.15,
			Amplitude: 0.15,
			Period:    45 * time.Second,
			Phase:     2 * math.Pi / 3,
		},
		Posture: Waveform{
			Base:      0.78,
			Amplitude: 0.15,
			Period:    90 * time.Second,
			Phase:     4 * math.Pi / 3,
		},
		DistractionProb: 0.05,
		BlinkProb:       0.1,
		NoiseAmplitude:  0.04,
		Clock:           clock.New(),
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Option is a functional option for configuring tracking components.
type Option func(*Config)

// WithEndpoint sets the backend websocket URL.
func WithEndpoint(url string) Option {
	return func(c *Config) {
		c.Endpoint = url
	}
}

// WithReconnect configures the reconnect budget and base delay.
func WithReconnect(maxAttempts int, base time.Duration) Option {
	return func(c *Config) {
		c.MaxReconnectAttempts = maxAttempts
		c.BaseBackoff = base
	}
}

// WithConnectTimeout caps a single connection attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ConnectTimeout = d
	}
}

// WithTick sets the synthetic generator's frame interval.
func WithTick(d time.Duration) Option {
	return func(c *Config) {
		c.Tick = d
	}
}

// WithWaveforms sets the generator's signal shapes.
func WithWaveforms(attention, strain, posture Waveform) Option {
	return func(c *Config) {
		c.Attention = attention
		c.Strain = strain
		c.Posture = posture
	}
}

// WithDistractionProb sets the per-tick synthetic distraction probability.
func WithDistractionProb(p float64) Option {
	return func(c *Config) {
		c.DistractionProb = p
	}
}

// WithSeed makes the generator deterministic.
func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithClock injects a clock; tests use clock.NewMock().
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.Clock = clk
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
