// Package protocol defines the WebSocket message types exchanged with the
// tracking backend. The backend owns the camera/CV pipeline; this package only
// describes what crosses the wire.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Backend → Client messages
	TypeConnected       MessageType = "connected"        // Handshake acknowledgement
	TypeTrackingStarted MessageType = "tracking_started" // Session is live
	TypeTrackingStopped MessageType = "tracking_stopped" // Session ended
	TypeTrackingPaused  MessageType = "tracking_paused"  // Session paused
	TypeTrackingResumed MessageType = "tracking_resumed" // Session resumed
	TypeTrackingData    MessageType = "tracking_data"    // Per-frame telemetry
	TypeError           MessageType = "error"            // Backend-side failure

	// Client → Backend messages
	TypeStartTracking  MessageType = "start_tracking"
	TypeStopTracking   MessageType = "stop_tracking"
	TypePauseTracking  MessageType = "pause_tracking"
	TypeResumeTracking MessageType = "resume_tracking"

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Backend → Client Message Types
// =============================================================================

// ConnectedData acknowledges a successful connection.
type ConnectedData struct {
	Message   string `json:"message"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"` // ISO 8601
}

// TrackingStartedData confirms a session started on the backend.
type TrackingStartedData struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// TrackingStoppedData confirms a session stopped on the backend.
type TrackingStoppedData struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// TrackingData is one raw telemetry frame as produced by the backend's
// CV pipeline. Field names and units follow the backend, not the canonical
// domain model; see the telemetry package for normalization.
type TrackingData struct {
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp,omitempty"` // ISO 8601

	// Attention analysis. AttentionScore is 0-1, the categorical labels
	// come from the backend's classifier.
	AttentionScore  float64 `json:"attention_score"`
	FocusLevel      string  `json:"focus_level,omitempty"`      // "low", "medium", "high"
	DistractionType string  `json:"distraction_type,omitempty"` // "phone", "away", "fatigue"
	FatigueLevel    string  `json:"fatigue_level,omitempty"`    // "alert", "tired", "very_tired"

	// Eye strain is 0-100 on the wire; posture is 0-1.
	EyeStrainLevel float64 `json:"eye_strain_level"`
	PostureScore   float64 `json:"posture_score"`

	// Gaze direction in screen coordinates, 0-1 with (0.5, 0.5) center.
	GazeDirectionX float64 `json:"gaze_direction_x"`
	GazeDirectionY float64 `json:"gaze_direction_y"`

	// Per-eye openness ratios, 0-1.
	LeftEyeRatio  float64 `json:"left_eye_ratio"`
	RightEyeRatio float64 `json:"right_eye_ratio"`

	BlinkDetected bool `json:"blink_detected"`

	// Head pose in degrees.
	HeadPitch float64 `json:"head_pitch"`
	HeadYaw   float64 `json:"head_yaw"`
	HeadRoll  float64 `json:"head_roll"`

	ConfidenceScore float64 `json:"confidence_score,omitempty"`

	// Raw facial landmarks, passed through untouched when present.
	Landmarks json.RawMessage `json:"landmarks,omitempty"`
}

// ErrorData carries a backend-side error.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// =============================================================================
// Client → Backend Message Types
// =============================================================================

// ControlData is the payload for all tracking control messages.
// Token is an opaque credential; this client never inspects it.
type ControlData struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
