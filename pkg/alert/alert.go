// Package alert derives rate-limited health alerts from normalized
// telemetry frames.
package alert

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies what condition raised an alert.
type Kind string

const (
	KindLowAttention Kind = "low_attention"
	KindEyeStrain    Kind = "eye_strain"
	KindPosture      Kind = "posture"
	KindDistraction  Kind = "distraction"
)

// Severity grades an alert for consumers.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Alert is one derived health alert. Alerts are immutable values created
// from exactly one telemetry frame.
type Alert struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func newAlert(sessionID string, kind Kind, severity Severity, message string, ts time.Time) Alert {
	return Alert{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		Timestamp: ts,
	}
}
