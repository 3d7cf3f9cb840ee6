package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	OutboundRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_requests_total",
			Help: "Total number of outbound dependency calls by outcome",
		},
		[]string{"dependency", "outcome"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker phase per dependency (0 closed, 1 open, 2 half-open)",
		},
		[]string{"dependency"},
	)

	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"type"},
	)
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"type"},
	)
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"type"},
	)

	IngestionQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestion_queue_depth",
			Help: "Ingestion queue rows by status",
		},
		[]string{"status"},
	)
	IngestionFanoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_fanout_total",
			Help: "Ingestion fanout operations by sink and outcome",
		},
		[]string{"sink", "outcome"},
	)

	ReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reservations_total",
			Help: "Reservations by terminal outcome",
		},
		[]string{"outcome"},
	)
	CriticalEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "critical_events_total",
			Help: "Critical reconciliation events by kind",
		},
		[]string{"kind"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(OutboundRequestsTotal)
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(IngestionQueueDepth)
	prometheus.MustRegister(IngestionFanoutTotal)
	prometheus.MustRegister(ReservationsTotal)
	prometheus.MustRegister(CriticalEventsTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// RecordOutbound counts one outbound dependency call outcome.
func RecordOutbound(dependency, outcome string) {
	OutboundRequestsTotal.WithLabelValues(dependency, outcome).Inc()
}

// SetBreakerState publishes a circuit phase change.
func SetBreakerState(dependency string, phase int) {
	CircuitBreakerState.WithLabelValues(dependency).Set(float64(phase))
}

func EnqueueJob(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func StartProcessingJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Inc()
}

func CompleteJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsCompletedTotal.WithLabelValues(jobType).Inc()
}

func FailJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsFailedTotal.WithLabelValues(jobType).Inc()
}

// SetIngestionDepth publishes the queue depth for one status.
func SetIngestionDepth(status string, n int64) {
	IngestionQueueDepth.WithLabelValues(status).Set(float64(n))
}

// RecordFanout counts one ingestion fanout attempt.
func RecordFanout(sink, outcome string) {
	IngestionFanoutTotal.WithLabelValues(sink, outcome).Inc()
}

// RecordReservationOutcome counts a reservation reaching a terminal state.
func RecordReservationOutcome(outcome string) {
	ReservationsTotal.WithLabelValues(outcome).Inc()
}

// RecordCriticalEvent counts one reconciliation-boundary event.
func RecordCriticalEvent(kind string) {
	CriticalEventsTotal.WithLabelValues(kind).Inc()
}
