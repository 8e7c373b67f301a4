// Package session runs the guided heart-sound capture procedure: a timed,
// strictly ordered sequence of steps that records audio, submits it for
// analysis and exposes the normalized result.
package session

import (
	"fmt"
	"time"
)

// Step is one stage of the guided procedure.
type Step int

const (
	StepWelcome Step = iota
	StepDeviceCheck
	StepPositioning
	StepListening
	StepRecording
	StepAnalyzing
	StepResults
	StepComplete
)

// Steps lists every step in procedure order.
var Steps = []Step{
	StepWelcome,
	StepDeviceCheck,
	StepPositioning,
	StepListening,
	StepRecording,
	StepAnalyzing,
	StepResults,
	StepComplete,
}

// String returns the wire name of the step.
func (s Step) String() string {
	switch s {
	case StepWelcome:
		return "welcome"
	case StepDeviceCheck:
		return "device_check"
	case StepPositioning:
		return "positioning"
	case StepListening:
		return "listening"
	case StepRecording:
		return "recording"
	case StepAnalyzing:
		return "analyzing"
	case StepResults:
		return "results"
	case StepComplete:
		return "complete"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText encodes the step as its wire name.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a wire name.
func (s *Step) UnmarshalText(b []byte) error {
	for _, st := range Steps {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", string(b))
}

// IsTerminal returns true for the final step.
func (s Step) IsTerminal() bool {
	return s == StepComplete
}

// Next returns the following step. ok is false for the terminal step.
func (s Step) Next() (next Step, ok bool) {
	if s < StepWelcome || s >= StepComplete {
		return s, false
	}
	return s + 1, true
}

// Instruction is what the user is shown and told during a step.
// Duration is how long the step stays in force before advancing; zero means
// the step is left by an event rather than a timer.
type Instruction struct {
	Title    string        `json:"title"`
	Subtitle string        `json:"subtitle"`
	Prompt   string        `json:"prompt"`
	Duration time.Duration `json:"-"`
}

// DefaultInstructions returns the standard procedure script.
func DefaultInstructions() map[Step]Instruction {
	return map[Step]Instruction{
		StepWelcome: {
			Title:    "Heart sound check",
			Subtitle: "We will guide you through a short recording",
			Prompt:   "Welcome. Find a quiet place and sit comfortably.",
			Duration: 4 * time.Second,
		},
		StepDeviceCheck: {
			Title:    "Checking your device",
			Subtitle: "Make sure the stethoscope is connected",
			Prompt:   "Checking that your stethoscope is connected and the microphone is available.",
			Duration: 3 * time.Second,
		},
		StepPositioning: {
			Title:    "Position the stethoscope",
			Subtitle: "Left side of the chest, below the collarbone",
			Prompt:   "Place the stethoscope on the left side of your chest, just below the collarbone.",
			Duration: 6 * time.Second,
		},
		StepListening: {
			Title:    "Stay still",
			Subtitle: "Breathe normally and avoid talking",
			Prompt:   "Hold the stethoscope steady and breathe normally. Recording starts shortly.",
			Duration: 5 * time.Second,
		},
		StepRecording: {
			Title:    "Recording",
			Subtitle: "Keep still for thirty seconds",
			Prompt:   "Recording now. Keep still until the recording finishes.",
			Duration: 30 * time.Second,
		},
		StepAnalyzing: {
			Title:    "Analyzing",
			Subtitle: "This usually takes a few seconds",
			Prompt:   "Recording complete. Analyzing your heart sounds.",
		},
		StepResults: {
			Title:    "Your results",
			Subtitle: "Review the summary below",
			Prompt:   "Your results are ready.",
			Duration: 8 * time.Second,
		},
		StepComplete: {
			Title:    "Done",
			Subtitle: "You can close this screen",
			Prompt:   "All done. Thank you.",
		},
	}
}
