package session

import (
	"context"
	"time"

	"heart-sound-session-service/internal/models"
	"heart-sound-session-service/internal/service/analysis"
	"heart-sound-session-service/internal/service/capture"
)

// Config holds session timing configuration.
type Config struct {
	Instructions  map[Step]Instruction
	TickInterval  time.Duration // recording counter period
	MaxRecording  time.Duration // hard recording ceiling
	ReportTimeout time.Duration // per-sink delivery bound
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		Instructions:  DefaultInstructions(),
		TickInterval:  time.Second,
		MaxRecording:  30 * time.Second,
		ReportTimeout: 5 * time.Second,
	}
}

// maxTicks is the ceiling on the elapsed-recording counter. Zero means the
// counter is uncapped.
func (c Config) maxTicks() int {
	if c.TickInterval <= 0 || c.MaxRecording <= 0 {
		return 0
	}
	n := int(c.MaxRecording / c.TickInterval)
	if n < 1 {
		n = 1
	}
	return n
}

// Analyzer submits a recording for classification.
type Analyzer interface {
	Submit(ctx context.Context, ref capture.AudioRef) (analysis.RawResponse, error)
}

// ReportSink receives the report of every finished session.
type ReportSink interface {
	Deliver(ctx context.Context, report models.SessionReport) error
}

// Outcome summarizes how a session ended or why it is paused.
type Outcome string

const (
	OutcomeInProgress     Outcome = "in_progress"
	OutcomeCompleted      Outcome = "completed"
	OutcomeCaptureError   Outcome = "capture_error"
	OutcomeAnalysisFailed Outcome = "analysis_failed"
	OutcomeCancelled      Outcome = "cancelled"
)
