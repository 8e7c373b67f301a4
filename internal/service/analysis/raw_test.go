package analysis

import "testing"

func TestParseRawResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"object", `{"prediction":"normal"}`, false},
		{"empty object", `{}`, false},
		{"array", `[1,2]`, true},
		{"string", `"ok"`, true},
		{"garbage", `<html>oops</html>`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRawResponse([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseRawResponse(%q) err = %v, wantErr %v", tt.body, err, tt.wantErr)
			}
		})
	}
}

func TestRawResponse_Accessors(t *testing.T) {
	raw, err := ParseRawResponse([]byte(`{
		"prediction": "murmur",
		"blank": "  ",
		"confidence": 0.7,
		"features": {"tempo": 88, "label": "x", "nested": null},
		"probabilities": {"murmur": 0.7, "normal": "n/a"}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if v, ok := raw.Float("features.tempo"); !ok || v != 88 {
		t.Errorf("expected tempo 88, got %v (%v)", v, ok)
	}
	if _, ok := raw.Float("features.label"); ok {
		t.Error("expected string value to be rejected as float")
	}
	if v, ok := raw.Float("missing", "confidence"); !ok || v != 0.7 {
		t.Errorf("expected fallback path to resolve confidence, got %v", v)
	}
	if _, ok := raw.Lookup("features.nested"); ok {
		t.Error("expected null to be treated as absent")
	}
	if _, ok := raw.Lookup("prediction.deeper"); ok {
		t.Error("expected lookup through a string to fail")
	}
	if s, ok := raw.String("blank", "prediction"); !ok || s != "murmur" {
		t.Errorf("expected blank string to be skipped, got %q", s)
	}
	probs, ok := raw.Probabilities("probabilities")
	if !ok || len(probs) != 1 || probs["murmur"] != 0.7 {
		t.Errorf("expected only numeric probabilities, got %v", probs)
	}
}

func TestRawResponse_NilIsSafe(t *testing.T) {
	var raw RawResponse
	if _, ok := raw.Float("confidence"); ok {
		t.Error("expected nil response to have no values")
	}
	if _, ok := raw.String("prediction"); ok {
		t.Error("expected nil response to have no values")
	}
}
