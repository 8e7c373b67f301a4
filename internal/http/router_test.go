package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"heart-sound-session-service/internal/apperr"
	"heart-sound-session-service/internal/models"
	"heart-sound-session-service/internal/observability/metrics"
	"heart-sound-session-service/internal/service/analysis"
	"heart-sound-session-service/internal/service/capture"
	"heart-sound-session-service/internal/service/capture/mock"
	"heart-sound-session-service/internal/service/session"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Submit(ctx context.Context, ref capture.AudioRef) (analysis.RawResponse, error) {
	return analysis.RawResponse{"prediction": "normal", "confidence": 0.9}, nil
}

type stubReports struct {
	reports map[string]models.SessionReport
}

func (s stubReports) Get(ctx context.Context, id string) (models.SessionReport, error) {
	if r, ok := s.reports[id]; ok {
		return r, nil
	}
	return models.SessionReport{}, apperr.E(apperr.CodeNotFound, "stub.Get", "report not found", nil)
}

type stubBackend struct{ up bool }

func (b stubBackend) CheckBackend(ctx context.Context) bool { return b.up }
func (b stubBackend) BackendReady() bool { return b.up }

func newTestServer(t *testing.T, backendUp bool) (*httptest.Server, *session.Manager) {
	t.Helper()
	// Default timings keep a new session parked on the welcome step for the test.
	mgr := session.NewManager(session.DefaultConfig(), mock.New(), stubAnalyzer{}, zerolog.Nop(), nil)
	t.Cleanup(mgr.Shutdown)

	reports := stubReports{reports: map[string]models.SessionReport{
		"archived": {SessionID: "archived", Outcome: "completed"},
	}}
	srv := httptest.NewServer(newRouter(mgr, reports, stubBackend{up: backendUp}, metrics.DefaultMetrics))
	t.Cleanup(srv.Close)
	return srv, mgr
}

func do(t *testing.T, method, url string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp, body
}

func TestRouter_SessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/sessions/current")
	if resp.StatusCode != http.StatusNotFound || body["code"] != string(apperr.CodeNoSession) {
		t.Fatalf("current before open: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/v1/sessions")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open: %d %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" || body["step"] != "welcome" {
		t.Errorf("unexpected snapshot %v", body)
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/v1/sessions")
	if resp.StatusCode != http.StatusConflict || body["code"] != string(apperr.CodeSessionActive) {
		t.Errorf("second open: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/sessions/current")
	if resp.StatusCode != http.StatusOK || body["id"] != id {
		t.Errorf("current: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/v1/sessions/current/retry")
	if resp.StatusCode != http.StatusConflict || body["code"] != string(apperr.CodeInvalidState) {
		t.Errorf("retry on running session: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/reports/"+id)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("report of running session: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodDelete, srv.URL+"/v1/sessions/current")
	if resp.StatusCode != http.StatusOK || body["outcome"] != "cancelled" || body["closed"] != true {
		t.Errorf("cancel: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/reports/"+id)
	if resp.StatusCode != http.StatusOK || body["eventType"] != models.EventSessionCancelled {
		t.Errorf("report of cancelled session: %d %v", resp.StatusCode, body)
	}
}

func TestRouter_Reports(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/reports/archived")
	if resp.StatusCode != http.StatusOK || body["sessionId"] != "archived" {
		t.Errorf("cached report: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/reports/missing")
	if resp.StatusCode != http.StatusNotFound || body["code"] != string(apperr.CodeNotFound) {
		t.Errorf("missing report: %d %v", resp.StatusCode, body)
	}
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		up         bool
		readyCode  int
		wantHealth bool
	}{
		{"backend up", true, http.StatusOK, true},
		{"backend down", false, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.up)

			resp, _ := do(t, http.MethodGet, srv.URL+"/v1/liveness")
			if resp.StatusCode != http.StatusOK {
				t.Errorf("liveness = %d", resp.StatusCode)
			}
			resp, _ = do(t, http.MethodGet, srv.URL+"/v1/readiness")
			if resp.StatusCode != tt.readyCode {
				t.Errorf("readiness = %d, want %d", resp.StatusCode, tt.readyCode)
			}
			resp, body := do(t, http.MethodGet, srv.URL+"/v1/backend/health")
			if resp.StatusCode != http.StatusOK || body["healthy"] != tt.wantHealth {
				t.Errorf("backend health: %d %v", resp.StatusCode, body)
			}
		})
	}
}

func TestRouter_CancelWithoutSession(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, body := do(t, http.MethodDelete, srv.URL+"/v1/sessions/current")
	if resp.StatusCode != http.StatusNotFound || body["error"] == "" {
		t.Errorf("cancel without session: %d %v", resp.StatusCode, body)
	}
}
