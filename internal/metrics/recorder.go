package metrics

import "time"

// Recorder defines observability hooks for run and per-ref build metrics.
// Implementations may forward to Prometheus etc. Components receive a
// Recorder through injection and default to NoopRecorder, so metrics can be
// activated without code changes.
type Recorder interface {
	ObserveRunDuration(d time.Duration)
	ObserveRefBuildDuration(ref string, d time.Duration, status string)
	IncRefOutcome(status string) // status: success|failed|cached
	SetBuildConcurrency(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(time.Duration)                      {}
func (NoopRecorder) ObserveRefBuildDuration(string, time.Duration, string) {}
func (NoopRecorder) IncRefOutcome(string)                                  {}
func (NoopRecorder) SetBuildConcurrency(int)                               {}
