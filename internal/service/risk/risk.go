// Package risk derives risk level, urgency and recommendation text from a
// classified heart-sound prediction.
package risk

import (
	"fmt"
	"math"
	"strings"
)

// NormalLabel is the prediction label of the normal class.
const NormalLabel = "normal"

// Level is the clinical risk level. Values are ordered by severity.
type Level int

const (
	LevelLow Level = iota
	LevelModerate
	LevelHigh
	LevelCritical
)

// String returns the wire form of the level.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelModerate:
		return "moderate"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// MarshalText encodes the level as its wire form.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a wire form produced by MarshalText.
func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*l = LevelLow
	case "moderate":
		*l = LevelModerate
	case "high":
		*l = LevelHigh
	case "critical":
		*l = LevelCritical
	default:
		return fmt.Errorf("unknown risk level %q", string(b))
	}
	return nil
}

// Urgency is the recommended timeliness of follow-up. Values are ordered by severity.
type Urgency int

const (
	UrgencyRoutine Urgency = iota
	UrgencyFollowUp
	UrgencyUrgent
	UrgencyImmediate
)

// String returns the wire form of the urgency.
func (u Urgency) String() string {
	switch u {
	case UrgencyRoutine:
		return "routine"
	case UrgencyFollowUp:
		return "follow_up"
	case UrgencyUrgent:
		return "urgent"
	case UrgencyImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("unknown(%d)", int(u))
	}
}

// MarshalText encodes the urgency as its wire form.
func (u Urgency) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText decodes a wire form produced by MarshalText.
func (u *Urgency) UnmarshalText(b []byte) error {
	switch string(b) {
	case "routine":
		*u = UrgencyRoutine
	case "follow_up":
		*u = UrgencyFollowUp
	case "urgent":
		*u = UrgencyUrgent
	case "immediate":
		*u = UrgencyImmediate
	default:
		return fmt.Errorf("unknown urgency %q", string(b))
	}
	return nil
}

// HintUrgency maps a server urgency hint (low|medium|high) to an Urgency.
// ok is false for absent or unrecognised hints.
func HintUrgency(hint string) (u Urgency, ok bool) {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "high":
		return UrgencyUrgent, true
	case "medium":
		return UrgencyFollowUp, true
	case "low":
		return UrgencyRoutine, true
	default:
		return UrgencyRoutine, false
	}
}

var (
	criticalTerms = []string{"severe", "critical", "emergency", "acute"}
	abnormalTerms = []string{"murmur", "arrhythmia", "abnormal"}
)

var recommendations = map[Urgency]string{
	UrgencyRoutine:   "Continue routine cardiac check-ups.",
	UrgencyFollowUp:  "Schedule a follow-up with a healthcare provider to review these results.",
	UrgencyUrgent:    "Consult a cardiologist promptly for further evaluation.",
	UrgencyImmediate: "Seek immediate medical attention.",
}

// Assessment is the outcome of rule evaluation.
type Assessment struct {
	Level          Level
	Urgency        Urgency
	Recommendation string
}

// Assess evaluates the rules in order. The first matching rule fixes the level
// and a base urgency; a server hint may raise the urgency but never lower it.
func Assess(label string, confidence float64, hint string) Assessment {
	level, urgency := evaluate(label, confidence)

	if hinted, ok := HintUrgency(hint); ok && hinted > urgency {
		urgency = hinted
	}

	return Assessment{
		Level:          level,
		Urgency:        urgency,
		Recommendation: recommendations[urgency],
	}
}

func evaluate(label string, confidence float64) (Level, Urgency) {
	lower := strings.ToLower(label)

	switch {
	case label == NormalLabel && confidence >= 0.8:
		return LevelLow, UrgencyRoutine
	case containsAny(lower, criticalTerms) && confidence > 0.7:
		return LevelCritical, UrgencyImmediate
	case containsAny(lower, abnormalTerms) && confidence > 0.7:
		return LevelHigh, UrgencyUrgent
	default:
		return LevelModerate, UrgencyFollowUp
	}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// Narrative renders the clinical narrative for a prediction.
func Narrative(label string, heartRate, confidence float64) string {
	pct := int(math.Round(confidence * 100))
	bpm := int(math.Round(heartRate))

	if label == NormalLabel {
		return fmt.Sprintf(
			"Heart sounds were classified as %s with an estimated heart rate of %d bpm. "+
				"Rhythm appears regular and no abnormal sounds were detected (confidence %d%%).",
			label, bpm, pct)
	}
	return fmt.Sprintf(
		"Heart sounds were classified as %s with an estimated heart rate of %d bpm. "+
			"The recording shows features that warrant clinical review (confidence %d%%).",
		label, bpm, pct)
}
