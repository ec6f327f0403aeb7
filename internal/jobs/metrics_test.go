package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
)

func scrape(registry *prometheus.Registry) string {
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}

func TestRunRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	assert.NoError(t, m.Start("cron").Finish(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Start("startup").Finish(boom), boom)
	assert.NoError(t, m.Start("").Finish(nil))

	body := scrape(registry)
	assert.Contains(t, body, `leadboard_sync_runs_total{reason="cron",status="success"} 1`)
	assert.Contains(t, body, `leadboard_sync_runs_total{reason="startup",status="failure"} 1`)
	assert.Contains(t, body, `leadboard_sync_runs_total{reason="unknown",status="success"} 1`)
	assert.Contains(t, body, `leadboard_sync_duration_seconds_count 3`)
	assert.Contains(t, body, `leadboard_sync_last_success_timestamp_seconds 1.7e+09`)
}

func TestFailureKeepsLastSuccess(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	_ = m.Start("cron").Finish(errors.New("down"))
	assert.Contains(t, scrape(registry), `leadboard_sync_last_success_timestamp_seconds 0`)
}

func TestNilRun(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Start("cron").Finish(boom), boom)

	var r *Run
	assert.NoError(t, r.Finish(nil))
}
