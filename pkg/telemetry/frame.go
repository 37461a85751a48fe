// Package telemetry defines the canonical telemetry frame and the
// normalizer that maps raw source payloads into it.
//
// Everything downstream of this package (bus consumers, the alert deriver,
// the UI bridge) sees only Frame values with all bounded fields already
// clamped; no consumer re-validates ranges.
package telemetry

import "time"

// FocusLevel is the categorical attention band.
type FocusLevel string

const (
	FocusLow    FocusLevel = "low"
	FocusMedium FocusLevel = "medium"
	FocusHigh   FocusLevel = "high"
)

// DistractionType labels what pulled the user away, "none" when focused.
type DistractionType string

const (
	DistractionNone    DistractionType = "none"
	DistractionPhone   DistractionType = "phone"
	DistractionAway    DistractionType = "away"
	DistractionFatigue DistractionType = "fatigue"
)

// FatigueLevel is the backend's fatigue classification.
type FatigueLevel string

const (
	FatigueAlert     FatigueLevel = "alert"
	FatigueTired     FatigueLevel = "tired"
	FatigueVeryTired FatigueLevel = "very_tired"
)

// Gaze is the gaze direction, centered coordinates in [-1, 1].
type Gaze struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Eyes holds per-eye openness ratios in [0, 1].
type Eyes struct {
	LeftOpenness  float64 `json:"left_openness"`
	RightOpenness float64 `json:"right_openness"`
}

// HeadPose is the head orientation in degrees.
type HeadPose struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Frame is one normalized snapshot of biometric signals for a single tick.
// Frames are immutable values; produce a new one rather than mutating.
//
// Range invariants (established by the Normalizer):
//
//	AttentionScore ∈ [0, 1]
//	EyeStrainLevel ∈ [0, 100]
//	PostureScore   ∈ [0, 100]
//	Gaze.X, Gaze.Y ∈ [-1, 1]
//	Eyes openness  ∈ [0, 1]
//	Confidence     ∈ [0, 1]
type Frame struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	AttentionScore float64 `json:"attention_score"`
	EyeStrainLevel float64 `json:"eye_strain_level"`
	PostureScore   float64 `json:"posture_score"`

	Gaze          Gaze     `json:"gaze"`
	Eyes          Eyes     `json:"eyes"`
	BlinkDetected bool     `json:"blink_detected"`
	HeadPose      HeadPose `json:"head_pose"`

	FocusLevel      FocusLevel      `json:"focus_level"`
	DistractionType DistractionType `json:"distraction_type"`
	FatigueLevel    FatigueLevel    `json:"fatigue_level"`

	Confidence float64 `json:"confidence"`
}
