package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/verdocs/internal/errors"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
)

// BuildFunc executes one full site build. Errors are logged, not fatal:
// watch mode keeps running across failed builds.
type BuildFunc func(ctx context.Context) error

// Runner drives repeated builds from ref-change triggers and an optional
// periodic schedule.
type Runner struct {
	build    BuildFunc
	watcher  *RefWatcher
	interval time.Duration
}

// NewRunner creates a runner. interval of zero disables the periodic schedule.
func NewRunner(build BuildFunc, watcher *RefWatcher, interval time.Duration) *Runner {
	return &Runner{
		build:    build,
		watcher:  watcher,
		interval: interval,
	}
}

// Run performs an initial build and then rebuilds on every trigger until ctx
// is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	var scheduler gocron.Scheduler
	if r.interval > 0 {
		s, err := gocron.NewScheduler()
		if err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "failed to create scheduler")
		}
		_, err = s.NewJob(
			gocron.DurationJob(r.interval),
			gocron.NewTask(r.fire),
			gocron.WithName("periodic-rebuild"),
		)
		if err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "failed to schedule periodic rebuild")
		}
		s.Start()
		scheduler = s
		slog.Info("Periodic rebuild enabled", "interval", r.interval.String())
	}
	defer func() {
		if scheduler != nil {
			if err := scheduler.Shutdown(); err != nil {
				slog.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}
	}()

	r.watcher.Start(ctx)
	defer func() {
		if err := r.watcher.Close(); err != nil {
			slog.Warn("Watcher close failed", logfields.Error(err))
		}
	}()

	r.runBuild(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watch mode stopping")
			return nil
		case <-r.watcher.Triggers():
			slog.Info("Rebuild triggered by ref change")
			r.runBuild(ctx)
		}
	}
}

// fire forwards a scheduler tick into the watcher's trigger channel so both
// sources share the same coalescing behavior.
func (r *Runner) fire() {
	select {
	case r.watcher.triggers <- struct{}{}:
	default:
	}
}

func (r *Runner) runBuild(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := r.build(ctx); err != nil {
		slog.Error("Build failed", logfields.Error(err),
			logfields.DurationMS(float64(time.Since(start).Milliseconds())))
		return
	}
	slog.Info("Build finished", logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}
