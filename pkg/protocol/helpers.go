package protocol

import (
	"time"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewStartTrackingMessage creates a start_tracking control message.
func NewStartTrackingMessage(sessionID, token string) (*Message, error) {
	return NewMessage(TypeStartTracking, ControlData{
		SessionID: sessionID,
		Token:     token,
	})
}

// NewStopTrackingMessage creates a stop_tracking control message.
func NewStopTrackingMessage(sessionID, token string) (*Message, error) {
	return NewMessage(TypeStopTracking, ControlData{
		SessionID: sessionID,
		Token:     token,
	})
}

// NewPauseTrackingMessage creates a pause_tracking control message.
func NewPauseTrackingMessage(sessionID, token string) (*Message, error) {
	return NewMessage(TypePauseTracking, ControlData{
		SessionID: sessionID,
		Token:     token,
	})
}

// NewResumeTrackingMessage creates a resume_tracking control message.
func NewResumeTrackingMessage(sessionID, token string) (*Message, error) {
	return NewMessage(TypeResumeTracking, ControlData{
		SessionID: sessionID,
		Token:     token,
	})
}

// NewTrackingDataMessage creates a tracking_data message.
// Used by tests and by fixtures standing in for the backend.
func NewTrackingDataMessage(data TrackingData) (*Message, error) {
	return NewMessage(TypeTrackingData, data)
}

// NewErrorMessage creates an error message.
func NewErrorMessage(message, code string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{
		Message: message,
		Code:    code,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response for a ping
func NewPongMessage(ping PingData) (*Message, error) {
	now := time.Now().UnixMilli()
	return NewMessage(TypePong, PongData{
		ID:        ping.ID,
		PingTS:    ping.Timestamp,
		PongTS:    now,
		LatencyMs: now - ping.Timestamp,
	})
}

// ParseTimestamp parses the backend's ISO 8601 timestamp. Returns the zero
// time when the field is absent or unparseable; the normalizer decides how
// to repair that.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
