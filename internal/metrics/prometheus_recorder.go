package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	runDuration      prom.Histogram
	refBuildDuration *prom.HistogramVec
	refOutcomes      *prom.CounterVec
	buildConcurrency prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "verdocs",
			Name:      "run_duration_seconds",
			Help:      "Total duration of one multi-ref build run",
			Buckets:   prom.DefBuckets,
		}),
		refBuildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "verdocs",
			Name:      "ref_build_duration_seconds",
			Help:      "Duration of individual ref builds",
			Buckets:   prom.DefBuckets,
		}, []string{"ref", "status"}),
		refOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "verdocs",
			Name:      "ref_outcomes_total",
			Help:      "Per-ref build outcomes by final status",
		}, []string{"status"}),
		buildConcurrency: prom.NewGauge(prom.GaugeOpts{
			Namespace: "verdocs",
			Name:      "build_concurrency",
			Help:      "Configured worker pool size for the current run",
		}),
	}
	reg.MustRegister(pr.runDuration, pr.refBuildDuration, pr.refOutcomes, pr.buildConcurrency)
	return pr
}

func (pr *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	pr.runDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObserveRefBuildDuration(ref string, d time.Duration, status string) {
	pr.refBuildDuration.WithLabelValues(ref, status).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncRefOutcome(status string) {
	pr.refOutcomes.WithLabelValues(status).Inc()
}

func (pr *PrometheusRecorder) SetBuildConcurrency(n int) {
	pr.buildConcurrency.Set(float64(n))
}
