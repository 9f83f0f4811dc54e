package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

type nopLogger struct{}

func (nopLogger) Info(...interface{})         {}
func (nopLogger) Error(error, ...interface{}) {}

func TestPrometheus(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheus(registry)

	metrics.RecordRead(false)
	metrics.RecordRead(false)
	metrics.RecordRead(true)
	metrics.EventResolved(ingest.ResolutionInserted)
	metrics.EventResolved(ingest.ResolutionDeadLettered)
	metrics.RetryScheduled()
	metrics.WriteObserved("inserted", 3*time.Millisecond)
	metrics.QueueDepth(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.records.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.records.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues("dead_lettered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.retries))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.queueDepth))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.writeDuration))
}

func TestServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewPrometheus(registry).EventResolved(ingest.ResolutionDuplicate)
	server := NewServer(":0", registry, nopLogger{})

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, strings.Contains(recorder.Body.String(), `eventingest_events_resolved_total{resolution="duplicate"} 1`))
	require.NoError(t, server.Close())
}
