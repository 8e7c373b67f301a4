package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSession(t *testing.T) {
	m := DefaultMetrics

	before := testutil.ToFloat64(m.SessionsFinished.WithLabelValues("completed"))
	m.RecordSessionStart()
	if testutil.ToFloat64(m.SessionsActive) < 1 {
		t.Error("expected active sessions gauge to be incremented")
	}
	m.RecordSessionEnd("completed")

	after := testutil.ToFloat64(m.SessionsFinished.WithLabelValues("completed"))
	if after != before+1 {
		t.Errorf("expected completed count to grow by 1, got %v -> %v", before, after)
	}
}

func TestRecordHealthCheck_Labels(t *testing.T) {
	m := DefaultMetrics

	healthy := testutil.ToFloat64(m.HealthChecks.WithLabelValues("healthy"))
	unhealthy := testutil.ToFloat64(m.HealthChecks.WithLabelValues("unhealthy"))

	m.RecordHealthCheck(true)
	m.RecordHealthCheck(false)
	m.RecordHealthCheck(false)

	if got := testutil.ToFloat64(m.HealthChecks.WithLabelValues("healthy")); got != healthy+1 {
		t.Errorf("expected healthy +1, got %v", got-healthy)
	}
	if got := testutil.ToFloat64(m.HealthChecks.WithLabelValues("unhealthy")); got != unhealthy+2 {
		t.Errorf("expected unhealthy +2, got %v", got-unhealthy)
	}
}

func TestRecordCacheOp(t *testing.T) {
	m := DefaultMetrics

	before := testutil.ToFloat64(m.CacheOperations.WithLabelValues("put", "error"))
	m.RecordCacheOp("put", errors.New("down"))
	if got := testutil.ToFloat64(m.CacheOperations.WithLabelValues("put", "error")); got != before+1 {
		t.Errorf("expected error counter +1, got %v", got-before)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 304: "3xx", 404: "4xx", 409: "4xx", 503: "5xx"}
	for status, want := range tests {
		if got := statusClass(status); got != want {
			t.Errorf("statusClass(%d) = %s, want %s", status, got, want)
		}
	}
}
