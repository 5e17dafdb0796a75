package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T, registry *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}

func TestTrackerRecordsSuccessfulRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	tracker := metrics.Track("catalog:drift_scan")
	if err := tracker.End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := scrape(t, registry)
	if !strings.Contains(body, `scholaris_jobs_total{job="catalog:drift_scan",status="success"} 1`) {
		t.Fatalf("expected success counter, got: %s", body)
	}
	if strings.Contains(body, `scholaris_jobs_failures_total{`) {
		t.Fatalf("unexpected failure counter: %s", body)
	}
	if !strings.Contains(body, `scholaris_job_duration_seconds_count{job="catalog:drift_scan"} 1`) {
		t.Fatalf("expected duration observation, got: %s", body)
	}
}

func TestTrackerRecordsFailureAndReturnsError(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	cause := errors.New("query failed")
	if err := metrics.Track("catalog:drift_scan").End(cause); !errors.Is(err, cause) {
		t.Fatalf("End must return its argument, got: %v", err)
	}

	body := scrape(t, registry)
	if !strings.Contains(body, `scholaris_jobs_total{job="catalog:drift_scan",status="failure"} 1`) {
		t.Fatalf("expected failure run counter, got: %s", body)
	}
	if !strings.Contains(body, `scholaris_jobs_failures_total{job="catalog:drift_scan"} 1`) {
		t.Fatalf("expected failure counter, got: %s", body)
	}
}

func TestAddDriftKeys(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AddDriftKeys("Legacy.Export", 2)
	metrics.AddDriftKeys("Legacy.Export", 0)

	body := scrape(t, registry)
	if !strings.Contains(body, `scholaris_catalog_drift_keys_total{key="Legacy.Export"} 2`) {
		t.Fatalf("expected drift counter, got: %s", body)
	}
}
