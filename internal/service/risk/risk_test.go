package risk

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAssess_Rules(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		confidence float64
		hint       string
		level      Level
		urgency    Urgency
	}{
		{"normal confident", "normal", 0.85, "low", LevelLow, UrgencyRoutine},
		{"murmur with medium hint", "murmur", 0.75, "medium", LevelHigh, UrgencyUrgent},
		{"severe arrhythmia", "severe_arrhythmia", 0.9, "high", LevelCritical, UrgencyImmediate},
		{"normal at boundary", "normal", 0.8, "", LevelLow, UrgencyRoutine},
		{"normal not confident", "normal", 0.79, "", LevelModerate, UrgencyFollowUp},
		{"critical term at boundary", "acute_event", 0.7, "", LevelModerate, UrgencyFollowUp},
		{"critical beats abnormal", "Severe Murmur", 0.71, "", LevelCritical, UrgencyImmediate},
		{"abnormal term", "abnormal", 0.95, "", LevelHigh, UrgencyUrgent},
		{"extrasystole falls through", "extrasystole", 0.95, "", LevelModerate, UrgencyFollowUp},
		{"unknown label", "artifact", 0.99, "", LevelModerate, UrgencyFollowUp},
		{"normal label is case sensitive", "Normal", 0.95, "", LevelModerate, UrgencyFollowUp},
		{"empty label", "", 0, "", LevelModerate, UrgencyFollowUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.label, tt.confidence, tt.hint)
			if got.Level != tt.level {
				t.Errorf("level = %s, want %s", got.Level, tt.level)
			}
			if got.Urgency != tt.urgency {
				t.Errorf("urgency = %s, want %s", got.Urgency, tt.urgency)
			}
			if got.Recommendation == "" {
				t.Error("expected a recommendation")
			}
		})
	}
}

func TestAssess_HintRaisesButNeverLowers(t *testing.T) {
	// Hint raises routine to urgent, level is untouched.
	got := Assess("normal", 0.9, "high")
	if got.Level != LevelLow || got.Urgency != UrgencyUrgent {
		t.Errorf("expected (low, urgent), got (%s, %s)", got.Level, got.Urgency)
	}

	// Hint cannot lower an immediate urgency.
	got = Assess("critical_murmur", 0.9, "low")
	if got.Urgency != UrgencyImmediate {
		t.Errorf("expected immediate, got %s", got.Urgency)
	}

	// Unknown hint is ignored.
	got = Assess("murmur", 0.5, "whenever")
	if got.Urgency != UrgencyFollowUp {
		t.Errorf("expected follow_up, got %s", got.Urgency)
	}
}

func TestAssess_Deterministic(t *testing.T) {
	first := Assess("murmur", 0.75, "medium")
	for i := 0; i < 10; i++ {
		if got := Assess("murmur", 0.75, "medium"); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestHintUrgency(t *testing.T) {
	tests := []struct {
		hint string
		want Urgency
		ok   bool
	}{
		{"high", UrgencyUrgent, true},
		{"HIGH", UrgencyUrgent, true},
		{" medium ", UrgencyFollowUp, true},
		{"low", UrgencyRoutine, true},
		{"", UrgencyRoutine, false},
		{"critical", UrgencyRoutine, false},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			got, ok := HintUrgency(tt.hint)
			if got != tt.want || ok != tt.ok {
				t.Errorf("HintUrgency(%q) = (%s, %v), want (%s, %v)", tt.hint, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestOrdering(t *testing.T) {
	if !(LevelLow < LevelModerate && LevelModerate < LevelHigh && LevelHigh < LevelCritical) {
		t.Error("risk levels are not totally ordered by severity")
	}
	if !(UrgencyRoutine < UrgencyFollowUp && UrgencyFollowUp < UrgencyUrgent && UrgencyUrgent < UrgencyImmediate) {
		t.Error("urgencies are not totally ordered by severity")
	}
}

func TestLevelAndUrgency_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Level   Level   `json:"level"`
		Urgency Urgency `json:"urgency"`
	}{LevelCritical, UrgencyFollowUp})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"level":"critical","urgency":"follow_up"}` {
		t.Errorf("unexpected JSON %s", b)
	}

	var l Level
	if err := l.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown level")
	}
	var u Urgency
	if err := u.UnmarshalText([]byte("immediate")); err != nil || u != UrgencyImmediate {
		t.Errorf("expected immediate, got %s (%v)", u, err)
	}
}

func TestNarrative_Templates(t *testing.T) {
	normal := Narrative("normal", 72.4, 0.856)
	if !strings.Contains(normal, "72 bpm") || !strings.Contains(normal, "86%") {
		t.Errorf("normal narrative missing parameters: %s", normal)
	}
	if !strings.Contains(normal, "no abnormal sounds") {
		t.Errorf("expected normal template, got %s", normal)
	}

	abnormal := Narrative("murmur", 96, 0.75)
	if !strings.Contains(abnormal, "murmur") || !strings.Contains(abnormal, "96 bpm") || !strings.Contains(abnormal, "75%") {
		t.Errorf("abnormal narrative missing parameters: %s", abnormal)
	}
	if !strings.Contains(abnormal, "clinical review") {
		t.Errorf("expected abnormal template, got %s", abnormal)
	}
}
