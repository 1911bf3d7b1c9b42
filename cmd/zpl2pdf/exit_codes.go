package main

import (
	"errors"
	"os"

	zpl2pdf "github.com/alnah/go-zpl2pdf"
	"github.com/alnah/go-zpl2pdf/internal/config"
)

// Exit codes for the zpl2pdf CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess  = 0 // Successful conversion
	ExitGeneral  = 1 // General/unexpected error
	ExitUsage    = 2 // Invalid flags, config, or validation
	ExitIO       = 3 // File not found, permission denied
	ExitRenderer = 4 // Rendering API errors (rate limit, bad response)
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Renderer errors (exit 4)
	if errors.Is(err, zpl2pdf.ErrRateLimited) ||
		errors.Is(err, zpl2pdf.ErrRenderFailed) ||
		errors.Is(err, zpl2pdf.ErrReassembly) ||
		errors.Is(err, zpl2pdf.ErrSchedulerClosed) {
		return ExitRenderer
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, zpl2pdf.ErrEmptyInput) ||
		errors.Is(err, zpl2pdf.ErrNoLabels) ||
		errors.Is(err, zpl2pdf.ErrInvalidLabelSize) ||
		errors.Is(err, zpl2pdf.ErrInvalidDensity) ||
		errors.Is(err, zpl2pdf.ErrInvalidFormat) ||
		errors.Is(err, zpl2pdf.ErrInvalidTier) ||
		errors.Is(err, zpl2pdf.ErrPNGMultiLabel) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrUnknownTier) {
		return ExitUsage
	}

	return ExitGeneral
}
