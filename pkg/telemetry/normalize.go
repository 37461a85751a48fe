package telemetry

import (
	"fmt"
	"math"
	"time"

	"github.com/studyeyes/go-tracker/pkg/protocol"
)

// MalformedFrameError reports a raw frame that could not be minimally
// repaired into a canonical Frame. It is published as an event, never
// thrown across the pipeline.
type MalformedFrameError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *MalformedFrameError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("telemetry: malformed frame: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("telemetry: malformed frame: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *MalformedFrameError) Unwrap() error {
	return e.Cause
}

// Sample is the synthetic generator's raw shape. Units differ from both the
// wire format and the canonical frame on purpose: the generator works in
// unit-interval waveform space and the normalizer owns the conversion.
type Sample struct {
	SessionID string
	At        time.Time

	// All three signals in [0, 1] waveform units.
	Attention float64
	Strain    float64
	Posture   float64

	// Gaze already centered in [-1, 1].
	GazeX float64
	GazeY float64

	LeftEye  float64
	RightEye float64
	Blink    bool

	Pitch float64
	Yaw   float64
	Roll  float64

	Distraction DistractionType
	Fatigue     FatigueLevel
	Confidence  float64
}

// Normalizer maps raw source payloads into canonical Frames. It is a pure
// mapping apart from the injected now func, used to repair missing
// timestamps.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer. now may be nil, in which case
// time.Now is used.
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// FromWire normalizes a backend tracking_data payload. fallbackSessionID is
// used when the payload carries no session id (the backend omits it on some
// paths); a frame with neither is malformed.
//
// Out-of-range numeric fields are clamped. Missing categorical fields get
// defaults: focus level is derived from the attention score (>=0.8 high,
// >=0.6 medium, else low — the backend's own banding), distraction "none",
// fatigue "alert". A missing timestamp is repaired to the current time.
func (n *Normalizer) FromWire(d *protocol.TrackingData, fallbackSessionID string) (Frame, error) {
	if d == nil {
		return Frame{}, &MalformedFrameError{Reason: "empty payload"}
	}

	sessionID := d.SessionID
	if sessionID == "" {
		sessionID = fallbackSessionID
	}
	if sessionID == "" {
		return Frame{}, &MalformedFrameError{Reason: "no session id"}
	}

	// The three core scores cannot be repaired if they are not numbers.
	for name, v := range map[string]float64{
		"attention_score":  d.AttentionScore,
		"eye_strain_level": d.EyeStrainLevel,
		"posture_score":    d.PostureScore,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Frame{}, &MalformedFrameError{Reason: "non-finite " + name}
		}
	}

	ts := protocol.ParseTimestamp(d.Timestamp)
	if ts.IsZero() {
		ts = n.now()
	}

	attention := clamp(d.AttentionScore, 0, 1)

	return Frame{
		SessionID:      sessionID,
		Timestamp:      ts,
		AttentionScore: attention,
		EyeStrainLevel: clamp(d.EyeStrainLevel, 0, 100),
		// Wire posture is 0-1; the canonical scale is 0-100.
		PostureScore: clamp(d.PostureScore*100, 0, 100),
		Gaze: Gaze{
			// Wire gaze is screen-space 0-1 with (0.5, 0.5) center.
			X: clamp(d.GazeDirectionX*2-1, -1, 1),
			Y: clamp(d.GazeDirectionY*2-1, -1, 1),
		},
		Eyes: Eyes{
			LeftOpenness:  clampFinite(d.LeftEyeRatio, 0, 1),
			RightOpenness: clampFinite(d.RightEyeRatio, 0, 1),
		},
		BlinkDetected: d.BlinkDetected,
		HeadPose: HeadPose{
			Pitch: finiteOrZero(d.HeadPitch),
			Yaw:   finiteOrZero(d.HeadYaw),
			Roll:  finiteOrZero(d.HeadRoll),
		},
		FocusLevel:      normalizeFocus(d.FocusLevel, attention),
		DistractionType: normalizeDistraction(d.DistractionType),
		FatigueLevel:    normalizeFatigue(d.FatigueLevel),
		Confidence:      clampFinite(d.ConfidenceScore, 0, 1),
	}, nil
}

// FromSample normalizes a synthetic generator sample. The generator is
// trusted to produce finite values, but clamping still applies so the Frame
// invariants hold for every source.
func (n *Normalizer) FromSample(s Sample) Frame {
	ts := s.At
	if ts.IsZero() {
		ts = n.now()
	}

	attention := clamp(s.Attention, 0, 1)

	distraction := s.Distraction
	if distraction == "" {
		distraction = DistractionNone
	}
	fatigue := s.Fatigue
	if fatigue == "" {
		fatigue = FatigueAlert
	}

	return Frame{
		SessionID:      s.SessionID,
		Timestamp:      ts,
		AttentionScore: attention,
		EyeStrainLevel: clamp(s.Strain*100, 0, 100),
		PostureScore:   clamp(s.Posture*100, 0, 100),
		Gaze: Gaze{
			X: clamp(s.GazeX, -1, 1),
			Y: clamp(s.GazeY, -1, 1),
		},
		Eyes: Eyes{
			LeftOpenness:  clamp(s.LeftEye, 0, 1),
			RightOpenness: clamp(s.RightEye, 0, 1),
		},
		BlinkDetected: s.Blink,
		HeadPose: HeadPose{
			Pitch: s.Pitch,
			Yaw:   s.Yaw,
			Roll:  s.Roll,
		},
		FocusLevel:      focusForAttention(attention),
		DistractionType: distraction,
		FatigueLevel:    fatigue,
		Confidence:      clamp(s.Confidence, 0, 1),
	}
}

func normalizeFocus(raw string, attention float64) FocusLevel {
	switch FocusLevel(raw) {
	case FocusLow, FocusMedium, FocusHigh:
		return FocusLevel(raw)
	}
	return focusForAttention(attention)
}

// focusForAttention bands an attention score the way the backend does.
func focusForAttention(attention float64) FocusLevel {
	switch {
	case attention >= 0.8:
		return FocusHigh
	case attention >= 0.6:
		return FocusMedium
	default:
		return FocusLow
	}
}

func normalizeDistraction(raw string) DistractionType {
	switch DistractionType(raw) {
	case DistractionPhone, DistractionAway, DistractionFatigue:
		return DistractionType(raw)
	}
	return DistractionNone
}

func normalizeFatigue(raw string) FatigueLevel {
	switch FatigueLevel(raw) {
	case FatigueAlert, FatigueTired, FatigueVeryTired:
		return FatigueLevel(raw)
	}
	return FatigueAlert
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// clampFinite clamps and additionally repairs NaN/Inf to the lower bound.
func clampFinite(value, min, max float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return min
	}
	return clamp(value, min, max)
}

func finiteOrZero(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}
