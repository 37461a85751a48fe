package alert

import (
	"testing"
	"time"

	"github.com/studyeyes/go-tracker/pkg/bus"
	"github.com/studyeyes/go-tracker/pkg/telemetry"
	"github.com/studyeyes/go-tracker/pkg/tracking"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// goodFrame is below no threshold.
func goodFrame(sessionID string, at time.Time) telemetry.Frame {
	return telemetry.Frame{
		SessionID:       sessionID,
		Timestamp:       at,
		AttentionScore:  0.9,
		EyeStrainLevel:  10,
		PostureScore:    90,
		DistractionType: telemetry.DistractionNone,
	}
}

func TestEvaluateThresholds(t *testing.T) {
	t.Run("healthy frame emits nothing", func(t *testing.T) {
		d := NewDeriver(Config{})
		if got := d.Evaluate(goodFrame("s1", t0)); len(got) != 0 {
			t.Errorf("expected no alerts, got %v", got)
		}
	})

	t.Run("each threshold raises its kind", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*telemetry.Frame)
			kind   Kind
			sev    Severity
		}{
			{"low attention", func(f *telemetry.Frame) { f.AttentionScore = 0.5 }, KindLowAttention, SeverityWarning},
			{"eye strain", func(f *telemetry.Frame) { f.EyeStrainLevel = 35 }, KindEyeStrain, SeverityWarning},
			{"posture", func(f *telemetry.Frame) { f.PostureScore = 60 }, KindPosture, SeverityWarning},
			{"distraction", func(f *telemetry.Frame) { f.DistractionType = telemetry.DistractionPhone }, KindDistraction, SeverityInfo},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				d := NewDeriver(Config{})
				f := goodFrame("s1", t0)
				tc.mutate(&f)

				got := d.Evaluate(f)
				if len(got) != 1 {
					t.Fatalf("expected 1 alert, got %d", len(got))
				}
				if got[0].Kind != tc.kind {
					t.Errorf("kind: got %q, want %q", got[0].Kind, tc.kind)
				}
				if got[0].Severity != tc.sev {
					t.Errorf("severity: got %q, want %q", got[0].Severity, tc.sev)
				}
				if got[0].SessionID != "s1" {
					t.Errorf("session id: got %q", got[0].SessionID)
				}
			})
		}
	})

	t.Run("values at the threshold do not alert", func(t *testing.T) {
		d := NewDeriver(Config{})
		f := goodFrame("s1", t0)
		f.AttentionScore = 0.6
		f.EyeStrainLevel = 20
		f.PostureScore = 70

		if got := d.Evaluate(f); len(got) != 0 {
			t.Errorf("expected no alerts at thresholds, got %v", got)
		}
	})

	t.Run("one frame can raise several kinds", func(t *testing.T) {
		d := NewDeriver(Config{})
		f := goodFrame("s1", t0)
		f.AttentionScore = 0.2
		f.PostureScore = 40

		got := d.Evaluate(f)
		if len(got) != 2 {
			t.Fatalf("expected 2 alerts, got %d", len(got))
		}
	})
}

func TestCooldown(t *testing.T) {
	t.Run("sustained condition alerts once per window", func(t *testing.T) {
		d := NewDeriver(Config{Cooldown: 2 * time.Second})

		var total int
		// 1 Hz frames, condition held for 5 seconds.
		for i := 0; i < 5; i++ {
			f := goodFrame("s1", t0.Add(time.Duration(i)*time.Second))
			f.AttentionScore = 0.3
			total += len(d.Evaluate(f))
		}

		// Emitted at t0, t0+2s, t0+4s.
		if total != 3 {
			t.Errorf("expected 3 alerts over 5s, got %d", total)
		}
	})

	t.Run("cooldowns are per kind", func(t *testing.T) {
		d := NewDeriver(Config{Cooldown: 10 * time.Second})

		f1 := goodFrame("s1", t0)
		f1.AttentionScore = 0.3
		if got := d.Evaluate(f1); len(got) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(got))
		}

		// Different kind, same session, inside the window.
		f2 := goodFrame("s1", t0.Add(time.Second))
		f2.PostureScore = 40
		got := d.Evaluate(f2)
		if len(got) != 1 || got[0].Kind != KindPosture {
			t.Errorf("posture alert should not be gated by attention cooldown, got %v", got)
		}
	})

	t.Run("cooldowns are per session", func(t *testing.T) {
		d := NewDeriver(Config{Cooldown: 10 * time.Second})

		f := goodFrame("s1", t0)
		f.AttentionScore = 0.3
		d.Evaluate(f)

		f.SessionID = "s2"
		if got := d.Evaluate(f); len(got) != 1 {
			t.Errorf("other session should alert independently, got %v", got)
		}
	})
}

func TestRecentWindow(t *testing.T) {
	t.Run("window is bounded, oldest evicted", func(t *testing.T) {
		d := NewDeriver(Config{Cooldown: time.Millisecond, RingCapacity: 3})

		for i := 0; i < 5; i++ {
			f := goodFrame("s1", t0.Add(time.Duration(i)*time.Second))
			f.AttentionScore = 0.3
			d.Evaluate(f)
		}

		got := d.Recent("s1")
		if len(got) != 3 {
			t.Fatalf("expected 3 retained alerts, got %d", len(got))
		}
		// Oldest first; the first two were evicted.
		if !got[0].Timestamp.Equal(t0.Add(2 * time.Second)) {
			t.Errorf("oldest retained: got %v", got[0].Timestamp)
		}
		if !got[2].Timestamp.Equal(t0.Add(4 * time.Second)) {
			t.Errorf("newest retained: got %v", got[2].Timestamp)
		}
	})

	t.Run("unknown session is empty", func(t *testing.T) {
		d := NewDeriver(Config{})
		if got := d.Recent("nope"); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("clear empties window but keeps cooldown", func(t *testing.T) {
		d := NewDeriver(Config{Cooldown: time.Minute})

		f := goodFrame("s1", t0)
		f.AttentionScore = 0.3
		d.Evaluate(f)

		d.Clear("s1")
		if got := d.Recent("s1"); len(got) != 0 {
			t.Errorf("expected empty window, got %v", got)
		}

		// Still inside the cooldown: no re-alert.
		f.Timestamp = t0.Add(time.Second)
		if got := d.Evaluate(f); len(got) != 0 {
			t.Errorf("clear must not re-open the cooldown gate, got %v", got)
		}
	})

	t.Run("drop discards cooldowns too", func(t *testing.T) {
		d := NewDeriver(Config{Cooldown: time.Minute})

		f := goodFrame("s1", t0)
		f.AttentionScore = 0.3
		d.Evaluate(f)

		d.Drop("s1")

		f.Timestamp = t0.Add(time.Second)
		if got := d.Evaluate(f); len(got) != 1 {
			t.Errorf("dropped session should alert fresh, got %v", got)
		}
	})
}

func TestAttach(t *testing.T) {
	b := bus.New(nil)
	d := NewDeriver(Config{})

	var got []Alert
	bus.SubscribeTo(b, bus.TopicAlert, func(a Alert) { got = append(got, a) })

	d.Attach(b)

	f := goodFrame("s1", t0)
	f.AttentionScore = 0.3
	b.Publish(bus.TopicTelemetry, f)

	if len(got) != 1 || got[0].Kind != KindLowAttention {
		t.Errorf("expected low_attention on the alert topic, got %v", got)
	}
}

func TestSuppressionCallback(t *testing.T) {
	var suppressed []Kind
	d := NewDeriver(Config{
		OnSuppressed: func(_ string, kind Kind) { suppressed = append(suppressed, kind) },
	})

	f := goodFrame("s1", t0)
	f.EyeStrainLevel = 50
	if got := d.Evaluate(f); len(got) != 1 {
		t.Fatalf("expected one alert, got %v", got)
	}
	if len(suppressed) != 0 {
		t.Fatalf("emitted alert reported as suppressed: %v", suppressed)
	}

	f.Timestamp = t0.Add(time.Second) // inside the 2s cooldown
	if got := d.Evaluate(f); len(got) != 0 {
		t.Fatalf("expected gated alert, got %v", got)
	}
	if len(suppressed) != 1 || suppressed[0] != KindEyeStrain {
		t.Errorf("expected one eye_strain suppression, got %v", suppressed)
	}
}

func TestStoppedSessionRetired(t *testing.T) {
	b := bus.New(nil)
	d := NewDeriver(Config{})
	d.Attach(b)

	f := goodFrame("s1", t0)
	f.AttentionScore = 0.3
	b.Publish(bus.TopicTelemetry, f)

	if got := d.Recent("s1"); len(got) != 1 {
		t.Fatalf("expected one recent alert, got %v", got)
	}

	b.Publish(bus.TopicSession, tracking.SessionState{
		SessionID: "s1",
		Status:    tracking.SessionStopped,
	})

	if got := d.Recent("s1"); len(got) != 0 {
		t.Errorf("retired session still has alerts: %v", got)
	}

	// Drop discards cooldowns too; ids are never reused, so a frame with
	// the same timestamp alerts again rather than being gated.
	b.Publish(bus.TopicTelemetry, f)
	if got := d.Recent("s1"); len(got) != 1 {
		t.Errorf("expected fresh bookkeeping after retirement, got %v", got)
	}
}
