package metrics

import (
	"errors"

	"github.com/studyeyes/go-tracker/pkg/alert"
	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/telemetry"
	"github.com/studyeyes/go-tracker/pkg/tracking"
)

// Observer records pipeline metrics from bus events. It holds its
// subscriptions so Detach can remove them, but records through the global
// manager like the rest of the package.
type Observer struct {
	subs []bus.Subscription
	b    *bus.Bus
}

// Attach subscribes the metrics recorders to the pipeline topics.
func Attach(b *bus.Bus) *Observer {
	o := &Observer{b: b}

	o.subs = append(o.subs,
		bus.SubscribeTo(b, bus.TopicTelemetry, func(f telemetry.Frame) {
			RecordFrame(f.AttentionScore)
		}),
		bus.SubscribeTo(b, bus.TopicAlert, func(a alert.Alert) {
			RecordAlert(string(a.Kind), string(a.Severity))
		}),
		bus.SubscribeTo(b, bus.TopicConnection, func(s tracking.ConnState) {
			UpdateConnectionState(int(s.Status))
			switch s.Status {
			case tracking.StatusConnecting:
				RecordConnectAttempt()
			case tracking.StatusDisconnected:
				RecordDisconnect()
			}
		}),
		bus.SubscribeTo(b, bus.TopicSession, func(s tracking.SessionState) {
			RecordSessionTransition(s.Status.String())
			UpdateSessionActive(s.Status == tracking.SessionTracking || s.Status == tracking.SessionPaused)
		}),
		bus.SubscribeTo(b, bus.TopicError, func(err error) {
			RecordPipelineError()
			var malformed *telemetry.MalformedFrameError
			if errors.As(err, &malformed) {
				RecordMalformedFrame()
			}
		}),
	)

	return o
}

// Detach removes the observer's subscriptions.
func (o *Observer) Detach() {
	for _, s := range o.subs {
		o.b.Unsubscribe(s)
	}
	o.subs = nil
}
