package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Submission metrics
	TasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tern_tasks_submitted_total",
			Help: "Total number of tasks submitted by kind",
		},
		[]string{"kind"},
	)

	TasksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tern_tasks_completed_total",
			Help: "Total number of tasks that reached a terminal state without error",
		},
	)

	TasksFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tern_tasks_failed_total",
			Help: "Total number of tasks that completed with an error",
		},
	)

	TasksCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tern_tasks_cancelled_total",
			Help: "Total number of tasks cancelled before completion",
		},
	)

	// Worker-side envelope metrics
	StagingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tern_staging_latency_seconds",
			Help:    "Time taken to stage envelope inputs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExecutionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tern_execution_latency_seconds",
			Help:    "Time taken by envelope execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	UnstagedFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tern_unstaged_files_total",
			Help: "Total number of output files copied to shared storage",
		},
	)

	CacheMaterializations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tern_cache_materializations_total",
			Help: "Total number of input files materialized into the local cache",
		},
	)

	// Monitor metrics
	MonitorCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tern_monitor_cycles_total",
			Help: "Total number of polling monitor cycles completed",
		},
	)
)

func init() {
	prometheus.MustRegister(TasksSubmitted)
	prometheus.MustRegister(TasksCompleted)
	prometheus.MustRegister(TasksFailed)
	prometheus.MustRegister(TasksCancelled)
	prometheus.MustRegister(StagingLatency)
	prometheus.MustRegister(ExecutionLatency)
	prometheus.MustRegister(UnstagedFiles)
	prometheus.MustRegister(CacheMaterializations)
	prometheus.MustRegister(MonitorCycles)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
