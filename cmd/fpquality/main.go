// Command fpquality scores fingerprint images from the command line.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go-fingerprint-quality/internal/cli"
	apperrors "go-fingerprint-quality/internal/errors"
)

// CLI exit codes for standardized error reporting.
const (
	// ExitSuccess indicates the operation completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitInvalidArgs indicates invalid command line arguments.
	ExitInvalidArgs = 2

	// ExitModelError indicates the model could not be loaded or verified.
	ExitModelError = 3

	// ExitInvalidImage indicates an input image was unusable.
	ExitInvalidImage = 4

	// ExitPartialFailure indicates some images were scored and some failed.
	ExitPartialFailure = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(exitCodeFromError(err))
	}
}

// exitCodeFromError maps error types to exit codes.
func exitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, cli.ErrPartialFailure):
		return ExitPartialFailure
	case apperrors.IsType(err, apperrors.ErrorTypeModelLoad),
		apperrors.IsType(err, apperrors.ErrorTypeModelHashMismatch),
		apperrors.IsType(err, apperrors.ErrorTypeSchemaMismatch):
		return ExitModelError
	case apperrors.IsType(err, apperrors.ErrorTypeInvalidImage):
		return ExitInvalidImage
	case apperrors.IsType(err, apperrors.ErrorTypeValidation):
		return ExitInvalidArgs
	default:
		return ExitGeneralError
	}
}
