package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Operation(t *testing.T) {
	r := New()
	started := time.Now()
	r.Operation("create_nomination", started, "", false)
	r.Operation("create_nomination", started, "duplicate_nomination", true)
	r.Operation("create_nomination", started, "", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("create_nomination", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("create_nomination", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("create_nomination", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("create_nomination", "duplicate_nomination")))
}

func TestRecorder_Counters(t *testing.T) {
	r := New()
	r.TierTransition("grant")
	r.TierTransition("grant")
	r.EventsClosed(3)
	r.EventsClosed(0)
	r.TxRetry("edit_nomination")
	r.JobRun("close_expired_events", time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.tierTransitions.WithLabelValues("grant")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.eventsClosed))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.txRetries.WithLabelValues("edit_nomination")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobRuns.WithLabelValues("close_expired_events", "error")))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.HTTPRequest("GET", "/health", "200")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "valores_http_requests_total"))
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Operation("x", time.Now(), "", false)
		r.TierTransition("grant")
		r.EventsClosed(1)
		r.TxRetry("x")
		r.HTTPRequest("GET", "/", "200")
		r.JobRun("x", time.Second, true)
	})
	assert.Nil(t, r.Registry())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
