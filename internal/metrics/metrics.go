package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagecomposer",
			Name:      "jobs_processed_total",
			Help:      "Composite jobs by result (success, failed, cancelled)",
		},
		[]string{"result"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pagecomposer",
			Name:      "job_duration_seconds",
			Help:      "Duration of one rasterize+compose+write job",
			Buckets:   prometheus.DefBuckets,
		},
	)

	rasterPages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagecomposer",
			Name:      "raster_pages_total",
			Help:      "Rasterized pages by backend and result",
		},
		[]string{"backend", "result"},
	)

	batches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagecomposer",
			Name:      "batches_total",
			Help:      "Completed batches by outcome (all_success, partial, all_failed, cancelled)",
		},
		[]string{"outcome"},
	)

	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pagecomposer",
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock duration of whole batches",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	jobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pagecomposer",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently claimed by workers",
		},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(jobsProcessed, jobDuration, rasterPages, batches, batchDuration, jobsInFlight)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveJob(result string, dur time.Duration) {
	jobsProcessed.WithLabelValues(result).Inc()
	jobDuration.Observe(dur.Seconds())
}

func IncRasterPage(backend, result string) { rasterPages.WithLabelValues(backend, result).Inc() }

func ObserveBatch(outcome string, wall time.Duration) {
	batches.WithLabelValues(outcome).Inc()
	batchDuration.Observe(wall.Seconds())
}

func JobStarted()  { jobsInFlight.Inc() }
func JobFinished() { jobsInFlight.Dec() }
