// Package compiler is the boundary to the external page compiler. The core
// treats the compiler as opaque: it is given a source snapshot and a target
// output directory and either succeeds or fails with a log excerpt.
package compiler

import (
	"context"
	"fmt"
)

// Compiler renders one snapshot into one output directory.
type Compiler interface {
	Compile(ctx context.Context, snapshotPath, outputPath string) error
}

// CompileError reports a failed compiler invocation together with the tail of
// its output, so the operator sees why without the core interpreting
// tool-specific diagnostics.
type CompileError struct {
	ExitCode   int
	LogExcerpt string
	Cause      error
}

func (e *CompileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("page compiler failed (exit %d): %v", e.ExitCode, e.Cause)
	}
	return fmt.Sprintf("page compiler failed (exit %d)", e.ExitCode)
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// Func adapts a plain function to the Compiler interface.
type Func func(ctx context.Context, snapshotPath, outputPath string) error

func (f Func) Compile(ctx context.Context, snapshotPath, outputPath string) error {
	return f(ctx, snapshotPath, outputPath)
}
