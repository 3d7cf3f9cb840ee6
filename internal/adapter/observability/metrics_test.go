package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddleware_RecordsRequest(t *testing.T) {
	before := testutil.CollectAndCount(HTTPRequestsTotal)
	mw := HTTPMetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))

	require.Equal(t, http.StatusNoContent, rec.Result().StatusCode)
	require.Greater(t, testutil.CollectAndCount(HTTPRequestsTotal), before)
}

func TestJobMetricsHelpers(t *testing.T) {
	EnqueueJob("wiki_generation")
	StartProcessingJob("wiki_generation")
	CompleteJob("wiki_generation")

	EnqueueJob("wiki_generation")
	StartProcessingJob("wiki_generation")
	FailJob("wiki_generation")

	require.GreaterOrEqual(t, testutil.ToFloat64(JobsEnqueuedTotal.WithLabelValues("wiki_generation")), 2.0)
	require.Equal(t, 0.0, testutil.ToFloat64(JobsProcessing.WithLabelValues("wiki_generation")))
}

func TestDependencyMetricsHelpers(t *testing.T) {
	RecordOutbound("billing", "success")
	RecordOutbound("billing", "failure")
	SetBreakerState("billing", 1)

	require.Equal(t, 1.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("billing")))

	SetBreakerState("billing", 0)
	require.Equal(t, 0.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("billing")))
}

func TestPipelineMetricsHelpers(t *testing.T) {
	SetIngestionDepth("PENDING", 7)
	require.Equal(t, 7.0, testutil.ToFloat64(IngestionQueueDepth.WithLabelValues("PENDING")))

	RecordFanout("vector", "success")
	RecordReservationOutcome("captured")
	RecordCriticalEvent("billing_capture_failed")
	require.GreaterOrEqual(t, testutil.ToFloat64(CriticalEventsTotal.WithLabelValues("billing_capture_failed")), 1.0)
}
