// Package commands contains the CLI command implementations.
package commands

import (
	"context"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/verdocs/internal/assembler"
	"git.home.luguber.info/inful/verdocs/internal/cache"
	"git.home.luguber.info/inful/verdocs/internal/compiler"
	"git.home.luguber.info/inful/verdocs/internal/config"
	"git.home.luguber.info/inful/verdocs/internal/errors"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
	"git.home.luguber.info/inful/verdocs/internal/metrics"
	"git.home.luguber.info/inful/verdocs/internal/orchestrator"
	"git.home.luguber.info/inful/verdocs/internal/refs"
	"git.home.luguber.info/inful/verdocs/internal/worktree"
)

// executeBuild runs one full pipeline pass: resolve refs, build each ref,
// assemble the site. Per-ref build failures are summarized, not fatal; a main
// ref without usable output surfaces as an assembly error.
func executeBuild(ctx context.Context, cfg *config.Config, recorder metrics.Recorder) error {
	resolver := refs.NewResolver(cfg.Repo.Path, cfg.Refs)
	refList, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	if len(refList) == 0 {
		slog.Warn("No refs matched the configured filters, nothing to build")
		return nil
	}

	if cfg.Output.Clean {
		if err := os.RemoveAll(cfg.Output.Dir); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to clean output directory").
				WithContext("path", cfg.Output.Dir)
		}
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", cfg.Output.Dir)
	}

	buildCache := openCache(cfg.Cache.Dir)
	defer func() {
		if closeErr := buildCache.Close(); closeErr != nil {
			slog.Warn("Failed to close build cache", logfields.Error(closeErr))
		}
	}()

	snapshots := worktree.NewManager(cfg.Repo.Path, "", cfg.Build.KeepSnapshots)
	comp := compiler.NewExecCompiler(cfg.Compiler)

	orch := orchestrator.New(snapshots, buildCache, comp, cfg.Output.Dir, cfg.Build.Workers).
		WithRecorder(recorder)
	results := orch.Run(ctx, refList)

	manifest, assembleErr := assembler.New(cfg.Output.Dir).Assemble(results)
	if assembleErr != nil {
		return assembleErr
	}
	slog.Info("Site assembled",
		logfields.Output(cfg.Output.Dir),
		"versions", len(manifest.Refs))

	// Per-ref failures do not fail the run as long as the main ref built; the
	// site was assembled from the refs that succeeded and the manifest records
	// the rest.
	var failed int
	for _, r := range results {
		if r.Status == orchestrator.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		slog.Warn("Some refs failed to build; they are excluded from the site",
			"failed", failed, "total", len(results))
	}
	return nil
}

// openCache opens the build cache. An empty dir disables caching, and an
// unopenable cache degrades to disabled rather than failing the build. A nil
// *cache.Cache is valid and never hits.
func openCache(dir string) *cache.Cache {
	if dir == "" {
		slog.Debug("Build cache disabled")
		return nil
	}
	c, err := cache.Open(dir)
	if err != nil {
		slog.Warn("Build cache unavailable, building everything", logfields.Error(err))
		return nil
	}
	return c
}
