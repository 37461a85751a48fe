package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/studyeyes/go-tracker/pkg/alert"
	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/telemetry"
	"github.com/studyeyes/go-tracker/pkg/tracking"
)

func frameWith(sessionID string, attention float64, at time.Time) telemetry.Frame {
	return telemetry.Frame{
		SessionID:      sessionID,
		Timestamp:      at,
		AttentionScore: attention,
		EyeStrainLevel: 10,
		PostureScore:   90,
	}
}

// fakeController records control calls and serves a scripted state.
type fakeController struct {
	state    tracking.SessionState
	startErr error
	ctrlErr  error

	started []string
	tokens  []string
	stops   int
	pauses  int
	resumes int
}

func (f *fakeController) StartTracking(sessionID, credential string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, sessionID)
	f.tokens = append(f.tokens, credential)
	f.state = tracking.SessionState{SessionID: sessionID, Status: tracking.SessionTracking}
	return nil
}

func (f *fakeController) StopTracking() error {
	if f.ctrlErr != nil {
		return f.ctrlErr
	}
	f.stops++
	f.state.Status = tracking.SessionStopped
	return nil
}

func (f *fakeController) PauseTracking() error {
	if f.ctrlErr != nil {
		return f.ctrlErr
	}
	f.pauses++
	f.state.Status = tracking.SessionPaused
	return nil
}

func (f *fakeController) ResumeTracking() error {
	if f.ctrlErr != nil {
		return f.ctrlErr
	}
	f.resumes++
	f.state.Status = tracking.SessionTracking
	return nil
}

func (f *fakeController) State() tracking.SessionState { return f.state }

func newTestServer(ctrl *fakeController, alerts AlertStore) *Server {
	return NewServer(":0", bus.New(nil), ctrl, alerts, nil)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeController{}, nil)
	resp := doJSON(t, srv, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: %d", resp.StatusCode)
	}
}

func TestTrackingControl(t *testing.T) {
	t.Run("start with explicit session id", func(t *testing.T) {
		ctrl := &fakeController{}
		srv := newTestServer(ctrl, nil)

		resp := doJSON(t, srv, http.MethodPost, "/api/tracking/start",
			StartRequest{SessionID: "s1", Token: "tok"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: %d", resp.StatusCode)
		}
		if len(ctrl.started) != 1 || ctrl.started[0] != "s1" || ctrl.tokens[0] != "tok" {
			t.Errorf("controller calls: %v %v", ctrl.started, ctrl.tokens)
		}

		var state tracking.SessionState
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			t.Fatal(err)
		}
		if state.SessionID != "s1" {
			t.Errorf("response state: %+v", state)
		}
	})

	t.Run("start without session id generates one", func(t *testing.T) {
		ctrl := &fakeController{}
		srv := newTestServer(ctrl, nil)

		resp := doJSON(t, srv, http.MethodPost, "/api/tracking/start", StartRequest{})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: %d", resp.StatusCode)
		}
		if len(ctrl.started) != 1 || ctrl.started[0] == "" {
			t.Errorf("expected generated session id, got %v", ctrl.started)
		}
	})

	t.Run("conflict on invalid transition", func(t *testing.T) {
		ctrl := &fakeController{ctrlErr: tracking.ErrInvalidTransition}
		srv := newTestServer(ctrl, nil)

		resp := doJSON(t, srv, http.MethodPost, "/api/tracking/pause", nil)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status: %d, want 409", resp.StatusCode)
		}
	})

	t.Run("conflict on double start", func(t *testing.T) {
		ctrl := &fakeController{startErr: tracking.ErrSessionActive}
		srv := newTestServer(ctrl, nil)

		resp := doJSON(t, srv, http.MethodPost, "/api/tracking/start", StartRequest{SessionID: "s2"})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status: %d, want 409", resp.StatusCode)
		}
	})

	t.Run("unavailable while disconnected", func(t *testing.T) {
		ctrl := &fakeController{startErr: tracking.ErrNotConnected}
		srv := newTestServer(ctrl, nil)

		resp := doJSON(t, srv, http.MethodPost, "/api/tracking/start", StartRequest{SessionID: "s1"})
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status: %d, want 503", resp.StatusCode)
		}
	})

	t.Run("unavailable after reconnect budget exhausted", func(t *testing.T) {
		ctrl := &fakeController{startErr: tracking.ErrMaxReconnect}
		srv := newTestServer(ctrl, nil)

		resp := doJSON(t, srv, http.MethodPost, "/api/tracking/start", StartRequest{SessionID: "s1"})
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status: %d, want 503", resp.StatusCode)
		}
	})

	t.Run("pause resume stop round trip", func(t *testing.T) {
		ctrl := &fakeController{}
		srv := newTestServer(ctrl, nil)

		doJSON(t, srv, http.MethodPost, "/api/tracking/start", StartRequest{SessionID: "s1"})
		doJSON(t, srv, http.MethodPost, "/api/tracking/pause", nil)
		doJSON(t, srv, http.MethodPost, "/api/tracking/resume", nil)
		doJSON(t, srv, http.MethodPost, "/api/tracking/stop", nil)

		if ctrl.pauses != 1 || ctrl.resumes != 1 || ctrl.stops != 1 {
			t.Errorf("calls: pauses=%d resumes=%d stops=%d", ctrl.pauses, ctrl.resumes, ctrl.stops)
		}
	})
}

func TestStatusEndpoint(t *testing.T) {
	ctrl := &fakeController{state: tracking.SessionState{
		SessionID: "s1",
		Status:    tracking.SessionTracking,
	}}
	srv := newTestServer(ctrl, nil)

	resp := doJSON(t, srv, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["session_id"] != "s1" || got["status"] != "tracking" {
		t.Errorf("body: %v", got)
	}
}

func TestAlertEndpoints(t *testing.T) {
	t.Run("returns retained alerts for the active session", func(t *testing.T) {
		d := alert.NewDeriver(alert.Config{})
		f := func(score float64, at time.Time) {
			d.Evaluate(frameWith("s1", score, at))
		}
		t0 := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		f(0.3, t0)

		ctrl := &fakeController{state: tracking.SessionState{SessionID: "s1", Status: tracking.SessionTracking}}
		srv := newTestServer(ctrl, d)

		resp := doJSON(t, srv, http.MethodGet, "/api/alerts", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: %d", resp.StatusCode)
		}

		var alerts []alert.Alert
		if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
			t.Fatal(err)
		}
		if len(alerts) != 1 || alerts[0].Kind != alert.KindLowAttention {
			t.Errorf("alerts: %v", alerts)
		}
	})

	t.Run("empty window encodes as array", func(t *testing.T) {
		ctrl := &fakeController{}
		srv := newTestServer(ctrl, alert.NewDeriver(alert.Config{}))

		resp := doJSON(t, srv, http.MethodGet, "/api/alerts?session_id=nope", nil)
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "[]" {
			t.Errorf("body: %s", body)
		}
	})

	t.Run("delete clears the window", func(t *testing.T) {
		d := alert.NewDeriver(alert.Config{})
		t0 := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		d.Evaluate(frameWith("s1", 0.3, t0))

		ctrl := &fakeController{state: tracking.SessionState{SessionID: "s1"}}
		srv := newTestServer(ctrl, d)

		resp := doJSON(t, srv, http.MethodDelete, "/api/alerts", nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("status: %d", resp.StatusCode)
		}
		if got := d.Recent("s1"); len(got) != 0 {
			t.Errorf("window not cleared: %v", got)
		}
	})

	t.Run("404 without an alert store", func(t *testing.T) {
		srv := newTestServer(&fakeController{}, nil)
		resp := doJSON(t, srv, http.MethodGet, "/api/alerts", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status: %d", resp.StatusCode)
		}
	})
}
