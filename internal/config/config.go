// Package config defines process configuration and its loading.
//
// Precedence (low -> high): built-in defaults, YAML file named by
// STUDYEYES_CONFIG, environment variables with the STUDYEYES_ prefix.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Source selects the telemetry source: "live" or "synthetic".
	Source string `koanf:"source"`

	// Endpoint is the tracking backend websocket URL (live source).
	Endpoint string `koanf:"endpoint"`

	// Token authenticates tracking sessions against the backend.
	Token string `koanf:"token"`

	// WebAddr is the UI bridge listen address, e.g. ":8090".
	WebAddr string `koanf:"web_addr"`

	// MetricsAddr is the Prometheus listen address. Empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`

	// MaxReconnectAttempts bounds consecutive failed connection attempts.
	MaxReconnectAttempts int `koanf:"max_reconnect_attempts"`

	// BaseBackoffMS is the first reconnect delay; each retry doubles it.
	BaseBackoffMS int `koanf:"base_backoff_ms"`

	// ConnectTimeoutMS bounds a single dial.
	ConnectTimeoutMS int `koanf:"connect_timeout_ms"`

	// TickMS is the synthetic generator's frame interval.
	TickMS int `koanf:"tick_ms"`

	// Seed seeds the synthetic generator. Zero means time-based.
	Seed int64 `koanf:"seed"`

	// AlertCooldownMS suppresses repeat alerts of a kind per session.
	AlertCooldownMS int `koanf:"alert_cooldown_ms"`

	// AlertRingCapacity bounds retained alerts per session.
	AlertRingCapacity int `koanf:"alert_ring_capacity"`

	// MinAttention is the attention score floor before alerting (0-1).
	MinAttention float64 `koanf:"min_attention"`

	// MaxEyeStrain is the eye strain ceiling before alerting (0-100).
	MaxEyeStrain float64 `koanf:"max_eye_strain"`

	// MinPosture is the posture score floor before alerting (0-100).
	MinPosture float64 `koanf:"min_posture"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Source:               "synthetic",
		Endpoint:             "ws://localhost:5000/tracking",
		WebAddr:              ":8090",
		MetricsAddr:          ":9090",
		MaxReconnectAttempts: 5,
		BaseBackoffMS:        1000,
		ConnectTimeoutMS:     10_000,
		TickMS:               1000,
		AlertCooldownMS:      2000,
		AlertRingCapacity:    10,
		MinAttention:         0.6,
		MaxEyeStrain:         20,
		MinPosture:           70,
	}
}
