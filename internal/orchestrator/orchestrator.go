// Package orchestrator drives the multi-ref build pipeline: cache lookups,
// snapshot materialization, compiler invocations and cache stores, executed
// by a bounded worker pool with per-ref failure isolation.
package orchestrator

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/verdocs/internal/compiler"
	"git.home.luguber.info/inful/verdocs/internal/errors"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
	"git.home.luguber.info/inful/verdocs/internal/metrics"
	"git.home.luguber.info/inful/verdocs/internal/refs"
	"git.home.luguber.info/inful/verdocs/internal/worktree"
)

// Snapshotter materializes and releases isolated checkouts.
type Snapshotter interface {
	Materialize(ctx context.Context, ref refs.Ref) (*worktree.Snapshot, error)
	Release(s *worktree.Snapshot) error
}

// BuildCache decides reuse vs. rebuild per ref.
type BuildCache interface {
	Lookup(ref refs.Ref) (string, bool)
	Store(ref refs.Ref, outputPath string) error
}

// Orchestrator schedules one build task per ref.
type Orchestrator struct {
	snapshots Snapshotter
	cache     BuildCache
	compiler  compiler.Compiler
	outputDir string
	workers   int
	recorder  metrics.Recorder
}

// New creates an orchestrator. workers <= 1 means sequential execution, the
// safe default for compilers that are not reentrant-safe.
func New(snapshots Snapshotter, cache BuildCache, comp compiler.Compiler, outputDir string, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		snapshots: snapshots,
		cache:     cache,
		compiler:  comp,
		outputDir: outputDir,
		workers:   workers,
		recorder:  metrics.NoopRecorder{},
	}
}

// WithRecorder injects a metrics recorder (optional).
func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	o.recorder = r
	return o
}

// Run builds every ref and returns one BuildResult per ref, in input order.
// A failure in one ref never aborts the others; Run returns only after every
// scheduled build has finished (the assembler's join barrier).
func (o *Orchestrator) Run(ctx context.Context, refList []refs.Ref) []BuildResult {
	start := time.Now()
	results := make([]BuildResult, len(refList))

	runID := uuid.NewString()[:8]
	slog.Info("Starting build run", "run_id", runID, "refs", len(refList), logfields.Workers(o.workers))
	o.recorder.SetBuildConcurrency(o.workers)

	jobs := make(chan int, len(refList))
	for i := range refList {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = o.buildRef(ctx, refList[idx])
			}
		}()
	}
	wg.Wait()

	o.recorder.ObserveRunDuration(time.Since(start))
	o.logSummary(runID, results)
	return results
}

/// buildRef executes the pipeline for one ref: cache lookup, snapshot,
// compile, cache store. Failed builds are never cached, forcing a retry on
// the next invocation.
func (o *Orchestrator) buildRef(ctx context.Context, ref refs.Ref) BuildResult {
	start := time.Now()
	result := o.doBuild(ctx, ref)
	result.Duration = time.Since(start)

	o.recorder.ObserveRefBuildDuration(ref.Name, result.Duration, string(result.Status))
	o.recorder.IncRefOutcome(string(result.Status))

	switch result.Status {
	case StatusCached:
		slog.Info("Reusing cached build", logfields.Ref(ref.Name), logfields.Output(result.OutputPath))
	case StatusSuccess:
		slog.Info("Build succeeded", logfields.Ref(ref.Name),
			logfields.Output(result.OutputPath),
			logfields.DurationMS(float64(result.Duration.Milliseconds())))
	case StatusFailed:
		slog.Error("Build failed", logfields.Ref(ref.Name), logfields.Error(result.Err))
	}
	return result
}

func (o *Orchestrator) doBuild(ctx context.Context, ref refs.Ref) BuildResult {
	if err := ctx.Err(); err != nil {
		return BuildResult{Ref: ref, Status: StatusFailed, Err: err}
	}

	target := filepath.Join(o.outputDir, ref.DirName())

	if cachedPath, ok := o.cache.Lookup(ref); ok {
		if cachedPath != target {
			if err := copyDir(cachedPath, target); err != nil {
				slog.Warn("Failed to copy cached output, rebuilding",
					logfields.Ref(ref.Name), logfields.Error(err))
				return o.compileRef(ctx, ref, target)
			}
		}
		return BuildResult{Ref: ref, Status: StatusCached, OutputPath: target}
	}

	return o.compileRef(ctx, ref, target)
}

func (o *Orchestrator) compileRef(ctx context.Context, ref refs.Ref, target string) BuildResult {
	snapshot, err := o.snapshots.Materialize(ctx, ref)
	if err != nil {
		return BuildResult{Ref: ref, Status: StatusFailed, Err: err}
	}
	defer func() {
		if releaseErr := o.snapshots.Release(snapshot); releaseErr != nil {
			slog.Warn("Failed to release snapshot", logfields.Ref(ref.Name), logfields.Error(releaseErr))
		}
	}()

	if err := os.MkdirAll(target, 0o750); err != nil {
		return BuildResult{
			Ref:    ref,
			Status: StatusFailed,
			Err: errors.WrapError(err, errors.CategoryFileSystem,
				fmt.Sprintf("failed to create output directory for ref %s", ref.Name)),
		}
	}

	if err := o.compiler.Compile(ctx, snapshot.Path, target); err != nil {
		result := BuildResult{Ref: ref, Status: StatusFailed, Err: err}
		var compileErr *compiler.CompileError
		if stdErrors.As(err, &compileErr) {
			result.LogExcerpt = compileErr.LogExcerpt
		}
		return result
	}

	if err := o.cache.Store(ref, target); err != nil {
		// A broken cache degrades to rebuild-next-time, never fails the ref.
		slog.Warn("Failed to store cache entry", logfields.Ref(ref.Name), logfields.Error(err))
	}

	return BuildResult{Ref: ref, Status: StatusSuccess, OutputPath: target}
}

// logSummary reports every ref's status, always, even on partial failure.
func (o *Orchestrator) logSummary(runID string, results []BuildResult) {
	var succeeded, cached, failed int
	for _, r := range results {
		slog.Info("Build result",
			logfields.Ref(r.Ref.Name),
			logfields.RefKind(string(r.Ref.Kind)),
			logfields.Status(string(r.Status)),
			logfields.Output(r.OutputPath))
		switch r.Status {
		case StatusSuccess:
			succeeded++
		case StatusCached:
			cached++
		case StatusFailed:
			failed++
		}
	}
	slog.Info("Build run finished", "run_id", runID,
		"succeeded", succeeded, "cached", cached, "failed", failed)
}

// copyDir copies a cached output tree into the site output directory.
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		in, err := os.Open(path) // #nosec G304 - path is from filepath.Walk within the cache dir
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) // #nosec G304
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}
