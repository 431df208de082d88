package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.ObserveBuild("completed", 1500*time.Millisecond, 2)
	m.ObserveBuild("completed", 200*time.Millisecond, 0)
	m.ObserveBuild("failed", 50*time.Millisecond, 1)
	m.SetQueueDepth(4)
	m.SetSubscribers(2)

	body := scrape(t, m)
	assert.Contains(t, body, `docpress_builds_total{result="completed"} 2`)
	assert.Contains(t, body, `docpress_builds_total{result="failed"} 1`)
	assert.Contains(t, body, "docpress_build_duration_seconds_count 3")
	assert.Contains(t, body, "docpress_dates_replaced_total 3")
	assert.Contains(t, body, "docpress_build_queue_depth 4")
	assert.Contains(t, body, "docpress_event_subscribers 2")
	assert.Contains(t, body, "go_goroutines")
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.SetQueueDepth(7)
	assert.Contains(t, scrape(t, a), "docpress_build_queue_depth 7")
	assert.Contains(t, scrape(t, b), "docpress_build_queue_depth 0")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBuild("completed", time.Second, 1)
		m.SetQueueDepth(1)
		m.SetSubscribers(1)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
