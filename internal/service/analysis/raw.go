package analysis

import (
	"encoding/json"
	"errors"
	"strings"
)

// RawResponse is the untrusted, partially-populated JSON object returned by
// the classification service. Values are kept as decoded by encoding/json so
// that consumers can check types before using them.
type RawResponse map[string]any

// ParseRawResponse decodes a response body. Anything other than a JSON object
// is an error.
func ParseRawResponse(body []byte) (RawResponse, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("response body is not a JSON object")
	}
	return RawResponse(obj), nil
}

// Lookup resolves a dotted path ("features.tempo") against the response.
func (r RawResponse) Lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Float returns the first path holding a JSON number.
func (r RawResponse) Float(paths ...string) (float64, bool) {
	for _, p := range paths {
		v, ok := r.Lookup(p)
		if !ok {
			continue
		}
		if f, ok := v.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

// String returns the first path holding a non-empty JSON string.
func (r RawResponse) String(paths ...string) (string, bool) {
	for _, p := range paths {
		v, ok := r.Lookup(p)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// Probabilities returns the first path holding an object of numbers.
// Non-numeric entries are skipped.
func (r RawResponse) Probabilities(paths ...string) (map[string]float64, bool) {
	for _, p := range paths {
		v, ok := r.Lookup(p)
		if !ok {
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out := make(map[string]float64, len(m))
		for k, val := range m {
			if f, ok := val.(float64); ok {
				out[k] = f
			}
		}
		if len(out) > 0 {
			return out, true
		}
	}
	return nil, false
}
