package tracking

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/protocol"
	"github.com/studyeyes/go-tracker/pkg/telemetry"
)

// fakeBackend is an in-process tracking backend for client tests.
type fakeBackend struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	received []*protocol.Message

	gotControl chan protocol.MessageType
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		gotControl: make(chan protocol.MessageType, 16),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := protocol.ParseMessage(data)
			if err != nil {
				continue
			}
			b.mu.Lock()
			b.received = append(b.received, msg)
			b.mu.Unlock()
			b.gotControl <- msg.Type
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *fakeBackend) send(t *testing.T, msg *protocol.Message) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		t.Fatal("backend has no connection")
	}
	if err := b.conn.WriteJSON(msg); err != nil {
		t.Fatalf("backend send: %v", err)
	}
}

func (b *fakeBackend) lastReceived() *protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.received) == 0 {
		return nil
	}
	return b.received[len(b.received)-1]
}

func (b *fakeBackend) dropConnection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
	}
}

func waitConn(t *testing.T, states <-chan ConnState, want ConnStatus) ConnState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if s.Status == want {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %v", want)
		}
	}
}

func newTestClient(t *testing.T, backend *fakeBackend, maxAttempts int) (*Client, <-chan ConnState) {
	t.Helper()
	b := bus.New(nil)
	states := make(chan ConnState, 32)
	bus.SubscribeTo(b, bus.TopicConnection, func(s ConnState) { states <- s })

	c := NewClient(b,
		WithEndpoint(backend.url()),
		WithReconnect(maxAttempts, 10*time.Millisecond),
		WithConnectTimeout(2*time.Second),
	)
	t.Cleanup(func() { c.Close() })
	return c, states
}

func TestClientSession(t *testing.T) {
	backend := newFakeBackend(t)
	c, states := newTestClient(t, backend, 3)

	if err := c.Ready(); err != ErrNotConnected {
		t.Errorf("ready before connect: got %v", err)
	}
	if err := c.Start("s1", "tok"); err != ErrNotConnected {
		t.Errorf("start before connect: got %v", err)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitConn(t, states, StatusConnected)

	if err := c.Ready(); err != nil {
		t.Errorf("ready after connect: %v", err)
	}

	t.Run("control messages reach the backend", func(t *testing.T) {
		if err := c.Start("s1", "tok"); err != nil {
			t.Fatalf("start: %v", err)
		}

		select {
		case typ := <-backend.gotControl:
			if typ != protocol.TypeStartTracking {
				t.Errorf("backend got %v", typ)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("backend never received start_tracking")
		}

		var ctrl protocol.ControlData
		if err := backend.lastReceived().ParseData(&ctrl); err != nil {
			t.Fatalf("parse control: %v", err)
		}
		if ctrl.SessionID != "s1" || ctrl.Token != "tok" {
			t.Errorf("control payload: %+v", ctrl)
		}
	})

	t.Run("frames are normalized and delivered", func(t *testing.T) {
		frames := make(chan telemetry.Frame, 4)
		c.OnFrame(func(f telemetry.Frame) { frames <- f })

		msg, err := protocol.NewTrackingDataMessage(protocol.TrackingData{
			SessionID:      "s1",
			AttentionScore: 0.4,
			EyeStrainLevel: 30,
			PostureScore:   0.85,
			GazeDirectionX: 0.5,
			GazeDirectionY: 0.5,
		})
		if err != nil {
			t.Fatal(err)
		}
		backend.send(t, msg)

		select {
		case f := <-frames:
			if f.SessionID != "s1" || f.AttentionScore != 0.4 {
				t.Errorf("frame: %+v", f)
			}
			if f.Gaze.X != 0 || f.Gaze.Y != 0 {
				t.Errorf("gaze not centered: %+v", f.Gaze)
			}
			if f.FocusLevel != telemetry.FocusLow {
				t.Errorf("focus: %q", f.FocusLevel)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("frame never delivered")
		}
	})

	t.Run("lifecycle acks delivered", func(t *testing.T) {
		events := make(chan LifecycleEvent, 4)
		c.OnLifecycle(func(ev LifecycleEvent) { events <- ev })

		msg, err := protocol.NewMessage(protocol.TypeTrackingStarted,
			protocol.TrackingStartedData{SessionID: "s1"})
		if err != nil {
			t.Fatal(err)
		}
		backend.send(t, msg)

		select {
		case ev := <-events:
			if ev.Kind != LifecycleStarted || ev.SessionID != "s1" {
				t.Errorf("event: %+v", ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("lifecycle event never delivered")
		}
	})

	t.Run("backend errors surface on the error callback", func(t *testing.T) {
		errs := make(chan error, 4)
		c.OnError(func(err error) { errs <- err })

		msg, err := protocol.NewErrorMessage("tracking engine crashed", "E42")
		if err != nil {
			t.Fatal(err)
		}
		backend.send(t, msg)

		select {
		case err := <-errs:
			if !strings.Contains(err.Error(), "tracking engine crashed") {
				t.Errorf("error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("error never delivered")
		}
	})
}

func TestClientReconnect(t *testing.T) {
	backend := newFakeBackend(t)
	c, states := newTestClient(t, backend, 5)

	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitConn(t, states, StatusConnected)

	backend.dropConnection()

	// The read pump reports the drop and the manager dials back in.
	waitConn(t, states, StatusDisconnected)
	waitConn(t, states, StatusConnected)
}

func TestClientGivesUp(t *testing.T) {
	backend := newFakeBackend(t)
	c, states := newTestClient(t, backend, 2)

	// Nothing listening anymore.
	backend.srv.Close()

	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-states:
			if s.LastError == ErrMaxReconnectReason {
				if s.Status != StatusDisconnected {
					t.Errorf("terminal status: %v", s.Status)
				}
				return
			}
		case <-deadline:
			t.Fatal("never reached terminal state")
		}
	}
}
