package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/verdocs/internal/config"
	"git.home.luguber.info/inful/verdocs/internal/metrics"
)

// BuildOptions carries the build command's flag overrides.
type BuildOptions struct {
	Output string
	Force  bool
}

// RunBuild executes a single build of the versioned site.
func RunBuild(configPath string, opts BuildOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if opts.Output != "" {
		cfg.Output.Dir = opts.Output
	}
	if opts.Force {
		cfg.Refs.Force = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return executeBuild(ctx, cfg, metrics.NoopRecorder{})
}
