package main

import (
	"errors"

	url2pdf "github.com/alnah/go-url2pdf"
	"github.com/alnah/go-url2pdf/internal/config"
)

// Exit codes for the url2pdf binary.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess  = 0 // Clean shutdown
	ExitGeneral  = 1 // General/unexpected error
	ExitUsage    = 2 // Invalid flags, environment, or config
	ExitRenderer = 3 // Renderer binary or browser unavailable
	ExitListen   = 4 // Cannot bind the listen address
)

// Sentinel errors for CLI operations.
var (
	ErrUsage      = errors.New("invalid usage")
	ErrInvalidEnv = errors.New("invalid environment variable")
	ErrListen     = errors.New("cannot listen")
	ErrWorkspace  = errors.New("workspace unavailable")
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, ErrListen) {
		return ExitListen
	}

	if errors.Is(err, url2pdf.ErrRendererNotFound) ||
		errors.Is(err, url2pdf.ErrBrowserConnect) {
		return ExitRenderer
	}

	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrInvalidEnv) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, url2pdf.ErrInvalidPageSize) ||
		errors.Is(err, url2pdf.ErrInvalidOrientation) ||
		errors.Is(err, url2pdf.ErrInvalidMargin) {
		return ExitUsage
	}

	return ExitGeneral
}
