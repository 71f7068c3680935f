package errors

import (
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for
// the verdocs CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if ve, ok := err.(*VerdocsError); ok {
		return a.exitCodeFromCategory(ve)
	}

	return 1
}

func (a *CLIErrorAdapter) exitCodeFromCategory(err *VerdocsError) int {
	switch err.Category {
	case CategoryConfig, CategoryValidation:
		return 2 // Invalid usage or configuration
	case CategoryGit:
		return 8 // External system error
	case CategorySnapshot, CategoryCompile, CategoryAssembly, CategoryFileSystem, CategoryCache:
		return 11 // Build error
	case CategoryRuntime:
		return 12 // Runtime error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	ve, ok := err.(*VerdocsError)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}

	if a.verbose {
		return ve.Error()
	}

	switch ve.Category {
	case CategoryConfig, CategoryValidation:
		return ve.Message
	default:
		return fmt.Sprintf("%s: %s", ve.Category, ve.Message)
	}
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logger.Error("command failed", slog.String("error", err.Error()))
	}

	fmt.Fprintf(os.Stderr, "%s\n", message)
	os.Exit(exitCode)
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}

	if ve, ok := err.(*VerdocsError); ok {
		return ve.Category == CategoryInternal ||
			ve.Category == CategoryRuntime ||
			ve.Severity == SeverityFatal
	}

	return true
}
