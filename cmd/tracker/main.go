// tracker: local agent for the StudyEyes telemetry pipeline.
// Connects a telemetry source (tracking backend or synthetic generator) to
// the event bus, derives alerts, and serves the UI bridge.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studyeyes/go-tracker/internal/config"
	"github.com/studyeyes/go-tracker/internal/log"
	"github.com/studyeyes/go-tracker/pkg/alert"
	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/metrics"
	"github.com/studyeyes/go-tracker/pkg/tracking"
	"github.com/studyeyes/go-tracker/pkg/web"
)

var (
	version  = "1.0.0"
	source   = flag.String("source", "", "telemetry source: live or synthetic (overrides config)")
	endpoint = flag.String("endpoint", "", "tracking backend websocket URL (overrides config)")
	debug    = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Source = *source
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	log.Init(cfg.LogLevel)
	logger := log.With("version", version)
	logger.Info("starting tracker", "source", cfg.Source)

	b := bus.New(log.L())

	src, err := buildSource(cfg, b)
	if err != nil {
		logger.Error("build source", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	ctrl := tracking.NewController(src, b, tracking.WithLogger(log.L()))

	deriver := alert.NewDeriver(alert.Config{
		Thresholds: alert.Thresholds{
			MinAttention: cfg.MinAttention,
			MaxEyeStrain: cfg.MaxEyeStrain,
			MinPosture:   cfg.MinPosture,
		},
		Cooldown:     time.Duration(cfg.AlertCooldownMS) * time.Millisecond,
		RingCapacity: cfg.AlertRingCapacity,
		OnSuppressed: func(string, alert.Kind) { metrics.RecordAlertSuppressed() },
		Logger:       log.L(),
	})
	deriver.Attach(b)
	defer deriver.Detach()

	observer := metrics.Attach(b)
	defer observer.Detach()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	srv := web.NewServer(cfg.WebAddr, b, ctrl, deriver, log.L())
	srv.StartAsync()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	if st := ctrl.State(); st.Status == tracking.SessionTracking || st.Status == tracking.SessionPaused {
		if err := ctrl.StopTracking(); err != nil {
			logger.Warn("stop session on shutdown", "error", err)
		}
	}
	if err := srv.Shutdown(); err != nil {
		logger.Warn("shutdown ui bridge", "error", err)
	}
}

// buildSource creates the configured telemetry source. The live client
// starts its reconnect loop immediately; a backend that is down at boot is
// retried with backoff rather than failing startup.
func buildSource(cfg *config.Config, b *bus.Bus) (tracking.Source, error) {
	opts := []tracking.Option{
		tracking.WithLogger(log.L()),
		tracking.WithEndpoint(cfg.Endpoint),
		tracking.WithReconnect(cfg.MaxReconnectAttempts, time.Duration(cfg.BaseBackoffMS)*time.Millisecond),
		tracking.WithConnectTimeout(time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond),
		tracking.WithTick(time.Duration(cfg.TickMS) * time.Millisecond),
		tracking.WithSeed(cfg.Seed),
	}

	if cfg.Source == "live" {
		client := tracking.NewClient(b, opts...)
		if err := client.Connect(); err != nil {
			return nil, err
		}
		return client, nil
	}
	return tracking.NewGenerator(opts...), nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	log.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server", "error", err)
	}
}
