package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/verdocs/cmd/verdocs/commands"
	"git.home.luguber.info/inful/verdocs/internal/errors"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"verdocs.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Output string `short:"o" help:"Output directory for the assembled site (overrides config)"`
		Force  bool   `help:"Tolerate missing main ref and detached HEAD"`
	} `cmd:"" help:"Build the versioned documentation site"`

	Refs struct {
		Force bool `help:"Tolerate missing main ref and detached HEAD"`
	} `cmd:"" help:"List the refs that would be built, without building"`

	Watch struct {
		Every time.Duration `help:"Also rebuild on a fixed interval (e.g. 30m); 0 disables"`
	} `cmd:"" help:"Rebuild continuously whenever branches or tags change"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	adapter := errors.NewCLIErrorAdapter(CLI.Verbose, logger)

	var err error
	switch ctx.Command() {
	case "build":
		err = commands.RunBuild(CLI.Config, commands.BuildOptions{
			Output: CLI.Build.Output,
			Force:  CLI.Build.Force,
		})
	case "refs":
		err = commands.RunRefs(CLI.Config, CLI.Refs.Force)
	case "watch":
		err = commands.RunWatch(CLI.Config, CLI.Watch.Every)
	case "init":
		err = commands.RunInit(CLI.Config, CLI.Init.Force)
	}

	if err != nil {
		adapter.HandleError(err)
	}
}
