package orchestrator

import (
	"time"

	"git.home.luguber.info/inful/verdocs/internal/refs"
)

// Status is the final state of one ref's build.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusCached  Status = "cached" // valid prior output reused, compiler not invoked
)

// BuildResult is the outcome of building one ref. Never mutated after
// creation; consumed by the assembler.
type BuildResult struct {
	Ref        refs.Ref
	Status     Status
	OutputPath string
	LogExcerpt string // tail of compiler output, set on failure
	Duration   time.Duration
	Err        error
}

// Usable reports whether the result's output participates in the final site
// (menu entries and redirect targets).
func (r BuildResult) Usable() bool {
	return r.Status == StatusSuccess || r.Status == StatusCached
}
