package url2pdf

import "errors"

// Sentinel errors for library operations.
var (
	// Request validation errors. Both wrap ErrInvalidInput.
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidURL   = errors.New("invalid source URL")
	ErrInvalidName  = errors.New("invalid output name")

	// Scheduling errors.
	ErrOverloaded      = errors.New("conversion queue is full")
	ErrSchedulerClosed = errors.New("scheduler is shut down")
	ErrCanceled        = errors.New("conversion canceled")

	// Rendering errors.
	ErrRenderTimedOut   = errors.New("renderer timed out")
	ErrRenderFailed     = errors.New("renderer failed")
	ErrEmptyOutput      = errors.New("renderer produced no output")
	ErrRendererNotFound = errors.New("renderer binary not found")
	ErrBrowserConnect   = errors.New("failed to connect to browser")

	// Page settings validation errors.
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargin      = errors.New("invalid margin")

	// ErrInternal covers filesystem and process-spawn failures.
	ErrInternal = errors.New("internal error")
)
