// Package models defines the data structures for session events.
package models

import (
	"heart-sound-session-service/internal/service/capture"
	"heart-sound-session-service/internal/service/normalize"
)

// Event types.
const (
	EventSessionCompleted = "heart.session.completed"
	EventSessionFailed    = "heart.session.failed"
	EventSessionCancelled = "heart.session.cancelled"
)

// SessionReport is emitted once per session when it closes.
type SessionReport struct {
	EventType        string            `json:"eventType" validate:"required,oneof=heart.session.completed heart.session.failed heart.session.cancelled"`
	SessionID        string            `json:"sessionId" validate:"required,uuid"`
	Outcome          string            `json:"outcome" validate:"required,oneof=completed capture_error analysis_failed cancelled"`
	LastStep         string            `json:"lastStep" validate:"required"`
	ErrorCode        string            `json:"errorCode,omitempty"`
	ErrorMessage     string            `json:"errorMessage,omitempty" validate:"required_with=ErrorCode"`
	RecordingSeconds int               `json:"recordingSeconds" validate:"gte=0"`
	Audio            *capture.AudioRef `json:"audio,omitempty"`
	Result           *normalize.Result `json:"result,omitempty" validate:"required_if=Outcome completed"`
	StartedAt        int64             `json:"startedAt" validate:"required"`
	FinishedAt       int64             `json:"finishedAt" validate:"required,gtefield=StartedAt"`
}

// EventTypeFor maps a session outcome onto its event type.
func EventTypeFor(outcome string) string {
	switch outcome {
	case "completed":
		return EventSessionCompleted
	case "cancelled":
		return EventSessionCancelled
	default:
		return EventSessionFailed
	}
}
