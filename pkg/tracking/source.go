// Package tracking implements the live telemetry pipeline: the telemetry
// source abstraction, the websocket client for the tracking backend, the
// synthetic generator, the connection manager, and the session controller.
//
// Both source implementations emit the same normalized frames and lifecycle
// events, so nothing downstream branches on which one is active. Example:
//
//	b := bus.New(logger)
//	src := tracking.NewGenerator(cfg)
//	ctrl := tracking.NewController(src, b, tracking.WithLogger(logger))
//
//	bus.SubscribeTo(b, bus.TopicTelemetry, func(f telemetry.Frame) {
//	    // render f
//	})
//
//	if err := ctrl.StartTracking("s1", token); err != nil {
//	    log.Fatal(err)
//	}
package tracking

import (
	"time"

	"github.com/studyeyes/go-tracker/pkg/telemetry"
)

// LifecycleKind identifies a session lifecycle event from a source.
type LifecycleKind string

const (
	LifecycleStarted LifecycleKind = "started"
	LifecycleStopped LifecycleKind = "stopped"
	LifecyclePaused  LifecycleKind = "paused"
	LifecycleResumed LifecycleKind = "resumed"
)

// LifecycleEvent is a session lifecycle notification from a source.
type LifecycleEvent struct {
	Kind      LifecycleKind `json:"kind"`
	SessionID string        `json:"session_id"`
	Timestamp time.Time     `json:"timestamp"`
}

// Source is anything that can run a tracking session and emit telemetry
// frames plus lifecycle events. The live websocket client and the synthetic
// generator are interchangeable implementations; consumers must never care
// which one is behind the interface.
//
// Set callbacks before Start. All control methods return synchronously;
// frames and events arrive on the source's emitting goroutine.
type Source interface {
	// Ready reports whether the source can begin a session right now.
	// The live client returns ErrNotConnected while the transport is down;
	// the generator is always ready.
	Ready() error

	// Start begins emitting frames for the session. credential is opaque
	// and forwarded to the backend untouched.
	Start(sessionID, credential string) error

	// Stop ends the session. The session id is retired and never reused.
	Stop(sessionID string) error

	// Pause suspends frame emission without discarding session state.
	Pause(sessionID string) error

	// Resume continues a paused session.
	Resume(sessionID string) error

	// OnFrame sets the callback for normalized telemetry frames.
	OnFrame(fn func(telemetry.Frame))

	// OnLifecycle sets the callback for session lifecycle events.
	OnLifecycle(fn func(LifecycleEvent))

	// OnError sets the callback for non-fatal source errors
	// (malformed frames, backend-reported errors).
	OnError(fn func(error))

	// Close releases the source's resources. A closed source cannot be
	// reused.
	Close() error
}

// Ensure both implementations satisfy Source.
var (
	_ Source = (*Client)(nil)
	_ Source = (*Generator)(nil)
	_ Source = (*Mock)(nil)
)
