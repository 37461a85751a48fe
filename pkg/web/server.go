package web

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/studyeyes/go-tracker/pkg/alert"
	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/telemetry"
	"github.com/studyeyes/go-tracker/pkg/tracking"
)

// SessionController is the slice of the session controller the bridge
// needs. *tracking.Controller satisfies it.
type SessionController interface {
	StartTracking(sessionID, credential string) error
	PauseTracking() error
	ResumeTracking() error
	StopTracking() error
	State() tracking.SessionState
}

// AlertStore is the slice of the alert deriver the bridge needs.
// *alert.Deriver satisfies it.
type AlertStore interface {
	Recent(sessionID string) []alert.Alert
	Clear(sessionID string)
}

// Event is the envelope every websocket client receives.
type Event struct {
	Topic string    `json:"topic"`
	At    time.Time `json:"at"`
	Data  any       `json:"data"`
}

// Server is the local UI bridge. It subscribes to the bus and relays every
// pipeline event to connected websocket clients, and exposes REST control
// endpoints over the session controller.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	bus    *bus.Bus
	ctrl   SessionController
	alerts AlertStore

	events *hub
	subs   []bus.Subscription
}

// NewServer creates the bridge server. alerts may be nil, in which case the
// alert endpoints return 404.
func NewServer(addr string, b *bus.Bus, ctrl SessionController, alerts AlertStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:   addr,
		logger: logger,
		bus:    b,
		ctrl:   ctrl,
		alerts: alerts,
		events: newHub("events", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "StudyEyes Tracker",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/tracking/start", s.handleStart)
	api.Post("/tracking/stop", s.handleStop)
	api.Post("/tracking/pause", s.handlePause)
	api.Post("/tracking/resume", s.handleResume)
	api.Get("/alerts", s.handleGetAlerts)
	api.Delete("/alerts", s.handleClearAlerts)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start subscribes to the bus, starts the fan-out hub and serves. Blocks.
func (s *Server) Start() error {
	go s.events.run()
	s.attach()

	s.logger.Info("ui bridge listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("ui bridge server", "error", err)
		}
	}()
}

// attach relays every bus topic into the events hub.
func (s *Server) attach() {
	relay := func(topic bus.Topic) func(any) {
		return func(payload any) {
			s.events.broadcastJSON(Event{
				Topic: string(topic),
				At:    time.Now(),
				Data:  payload,
			})
		}
	}

	s.subs = append(s.subs,
		s.bus.Subscribe(bus.TopicConnection, relay(bus.TopicConnection)),
		s.bus.Subscribe(bus.TopicSession, relay(bus.TopicSession)),
		bus.SubscribeTo(s.bus, bus.TopicTelemetry, func(f telemetry.Frame) {
			s.events.broadcastJSON(Event{Topic: string(bus.TopicTelemetry), At: time.Now(), Data: f})
		}),
		bus.SubscribeTo(s.bus, bus.TopicAlert, func(a alert.Alert) {
			s.events.broadcastJSON(Event{Topic: string(bus.TopicAlert), At: time.Now(), Data: a})
		}),
		bus.SubscribeTo(s.bus, bus.TopicError, func(err error) {
			s.events.broadcastJSON(Event{Topic: string(bus.TopicError), At: time.Now(), Data: err.Error()})
		}),
	)
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	return s.events.clientCount()
}

// Shutdown gracefully stops the server and detaches from the bus.
func (s *Server) Shutdown() error {
	for _, sub := range s.subs {
		s.bus.Unsubscribe(sub)
	}
	s.subs = nil
	return s.app.Shutdown()
}
