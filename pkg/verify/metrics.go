package verify

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// Stage metrics
	stageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smoketest_stage_total",
		Help: "Total number of executed verification stages",
	}, []string{"stage", "result"})

	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smoketest_stage_duration_seconds",
		Help:    "Duration of verification stages",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
	}, []string{"stage"})

	// Run metrics
	runTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smoketest_runs_total",
		Help: "Total number of verification runs",
	}, []string{"result"})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smoketest_run_duration_seconds",
		Help:    "Duration of full verification runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
	}, []string{"result"})
)

func init() {
	// Register with the controller-runtime metrics registry
	metrics.Registry.MustRegister(
		stageTotal,
		stageDuration,
		runTotal,
		runDuration,
	)
}

// RecordStage records the outcome of a single stage.
func RecordStage(stage Stage, result string, durationSeconds float64) {
	stageTotal.WithLabelValues(string(stage), result).Inc()
	stageDuration.WithLabelValues(string(stage)).Observe(durationSeconds)
}

// RecordRun records the outcome of a full verification run.
func RecordRun(result string, durationSeconds float64) {
	runTotal.WithLabelValues(result).Inc()
	runDuration.WithLabelValues(result).Observe(durationSeconds)
}
