package compiler

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/verdocs/internal/config"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
)

// ExecCompiler invokes the configured documentation tool as a subprocess.
// The {source} and {output} placeholders in args are substituted per
// invocation; the working directory is the snapshot so relative paths in the
// tool's own config resolve against the checked-out tree.
type ExecCompiler struct {
	cfg config.CompilerConfig
}

// NewExecCompiler creates a subprocess-backed compiler from config.
func NewExecCompiler(cfg config.CompilerConfig) *ExecCompiler {
	if cfg.LogExcerptBytes <= 0 {
		cfg.LogExcerptBytes = 4096
	}
	return &ExecCompiler{cfg: cfg}
}

// Compile runs the compiler command against the snapshot. A non-zero exit is
// returned as a *CompileError carrying the tail of the combined output; it
// never panics or aborts the process.
func (e *ExecCompiler) Compile(ctx context.Context, snapshotPath, outputPath string) error {
	args := make([]string, 0, len(e.cfg.Args))
	for _, a := range e.cfg.Args {
		a = strings.ReplaceAll(a, "{source}", snapshotPath)
		a = strings.ReplaceAll(a, "{output}", outputPath)
		args = append(args, a)
	}

	cmd := exec.CommandContext(ctx, e.cfg.Command, args...) // #nosec G204 - command comes from operator config
	cmd.Dir = snapshotPath
	if len(e.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), e.cfg.Env...)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	slog.Debug("Invoking page compiler",
		"command", e.cfg.Command,
		logfields.Path(snapshotPath),
		logfields.Output(outputPath))

	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}

	return &CompileError{
		ExitCode:   exitCode,
		LogExcerpt: tail(output.Bytes(), e.cfg.LogExcerptBytes),
		Cause:      err,
	}
}

// tail returns at most n trailing bytes of b, aligned to a line start.
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	b = b[len(b)-n:]
	if i := bytes.IndexByte(b, '\n'); i >= 0 && i+1 < len(b) {
		b = b[i+1:]
	}
	return string(b)
}
