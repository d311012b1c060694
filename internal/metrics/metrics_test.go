package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(body)
}

func TestRecordParse(t *testing.T) {
	m := New()
	m.RecordParse(120, time.Millisecond, nil)
	m.RecordParse(120, time.Millisecond, nil)
	m.RecordParse(0, 0, errors.New("boom"))

	body := scrape(t, m)
	for _, want := range []string{
		`hl7gest_messages_parsed_total{status="ok"} 2`,
		`hl7gest_messages_parsed_total{status="error"} 1`,
		"hl7gest_parse_duration_seconds_count 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

func TestJobsGauge(t *testing.T) {
	m := New()
	m.JobStarted()
	m.JobStarted()
	m.JobFinished("completed")

	body := scrape(t, m)
	if !strings.Contains(body, "hl7gest_jobs_running 1") {
		t.Error("expected 1 running job")
	}
	if !strings.Contains(body, `hl7gest_jobs_total{status="completed"} 1`) {
		t.Error("expected 1 completed job")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordQuery("found")
	m.RecordHTTPRequest("GET", "200", time.Millisecond)

	body := scrape(t, m)
	for _, want := range []string{
		`hl7gest_queries_total{result="found"} 1`,
		`hl7gest_http_requests_total{method="GET",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordParse(1, time.Millisecond, nil)
	m.RecordQuery("found")
	m.RecordHTTPRequest("GET", "200", time.Millisecond)
	m.JobStarted()
	m.JobFinished("failed")
	if m.Registry() != nil {
		t.Error("expected nil registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
