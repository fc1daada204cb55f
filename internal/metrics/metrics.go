package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fileconv"

var (
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Processing requests by operation and result (success or error kind)",
		},
		[]string{"operation", "result"},
	)

	transformLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Duration of transforms by operation",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	artifactsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Files written to outgoing storage by operation",
		},
		[]string{"operation"},
	)

	sweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Retention sweeps performed",
		},
	)

	sweepRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removed_total",
			Help:      "Files removed by the retention sweeper",
		},
	)

	sweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Per-file errors swallowed by the retention sweeper",
		},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)

	registerOnce sync.Once
)

// Init registers collectors with the default registry. Safe to call twice.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requests, transformLatency, artifactsWritten, sweepRuns, sweepRemoved, sweepFailures, rateLimited)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRequest(operation, result string) { requests.WithLabelValues(operation, result).Inc() }

func ObserveTransform(operation string, dur time.Duration) {
	transformLatency.WithLabelValues(operation).Observe(dur.Seconds())
}

func AddArtifacts(operation string, n int) { artifactsWritten.WithLabelValues(operation).Add(float64(n)) }

// ObserveSweep records one sweeper pass.
func ObserveSweep(removed, failed int) {
	sweepRuns.Inc()
	sweepRemoved.Add(float64(removed))
	sweepFailures.Add(float64(failed))
}

func IncRateLimited() { rateLimited.Inc() }
