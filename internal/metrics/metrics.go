// Package metrics declares the Prometheus vectors exported by every
// subsystem and the HTTP server that publishes them.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue / dispatcher

	QueueClaimLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "orchestrator",
		Name:      "queue_claim_latency_seconds",
		Help:      "Time from request creation to a worker claiming it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	QueueTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "queue_transitions_total",
		Help:      "Total request status transitions, by to-status and outcome.",
	}, []string{"to_status", "outcome"})

	ReclaimedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "reclaimed_total",
		Help:      "Total requests returned to NEW by the reclaim sweep.",
	}, []string{"reason"})

	// Schedule evaluator

	ScheduleTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "orchestrator",
		Name:      "schedule_tick_duration_seconds",
		Help:      "Time taken for one schedule-evaluator tick.",
		Buckets:   prometheus.DefBuckets,
	})

	ScheduleEnqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "schedule_enqueued_total",
		Help:      "Total requests enqueued by the schedule evaluator.",
	})

	// Executor / chunk processor

	ChunkDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orchestrator",
		Name:      "chunk_duration_seconds",
		Help:      "Duration of one chunk attempt (extract-transform-load-commit).",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"strategy", "outcome"})

	ChunkRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "chunk_retries_total",
		Help:      "Total chunk attempts classified as retryable.",
	}, []string{"classification"})

	RowsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "rows_processed_total",
		Help:      "Total rows processed, by mapping reference and outcome.",
	}, []string{"mapping_ref", "outcome"})

	RunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orchestrator",
		Name:      "run_duration_seconds",
		Help:      "Duration of one run, from RunLog open to close.",
		Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"outcome"})

	ActiveRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "orchestrator",
		Name:      "active_runs",
		Help:      "Number of runs currently executing.",
	})

	// HTTP admin surface

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orchestrator",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

// Register registers every collector against the default Prometheus
// registry. Call once at process startup.
func Register() {
	prometheus.MustRegister(
		QueueClaimLatency,
		QueueTransitionsTotal,
		ReclaimedTotal,
		ScheduleTickDuration,
		ScheduleEnqueuedTotal,
		ChunkDuration,
		ChunkRetriesTotal,
		RowsProcessedTotal,
		RunDuration,
		ActiveRuns,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// ReadinessChecker is satisfied by *health.Checker; kept as an interface
// here so the metrics server doesn't need to import the health package.
type ReadinessChecker interface {
	ReadinessJSON(ctx context.Context) (up bool, body []byte)
}

// NewServer builds the metrics/health listener, separate from the admin
// HTTP API so that scraping never competes with it for gin middleware.
func NewServer(addr string, checker ReadinessChecker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"up"}`))
	})
	if checker != nil {
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			up, body := checker.ReadinessJSON(r.Context())
			w.Header().Set("Content-Type", "application/json")
			if !up {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			_, _ = w.Write(body)
		})
	}
	return &http.Server{Addr: addr, Handler: mux}
}
