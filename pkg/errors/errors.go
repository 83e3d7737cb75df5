// Package errors defines the engine's error taxonomy and its mapping onto
// HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput marks a malformed document or query record, a bad
	// k, or an unknown ranking model.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexNotReady is returned when scoring is requested before any
	// build has completed.
	ErrIndexNotReady = errors.New("index not ready")
	// ErrBuildFailure aborts a whole build; the previous snapshot stays live.
	ErrBuildFailure = errors.New("index build failed")
	// ErrCacheCorruption marks a persisted cache entry that failed its
	// integrity check. Callers treat it as a miss.
	ErrCacheCorruption = errors.New("cache entry corrupt")
	// ErrSnapshotMismatch is returned when a persisted snapshot does not
	// belong to the requested corpus fingerprint.
	ErrSnapshotMismatch = errors.New("snapshot fingerprint mismatch")
	// ErrRebuildInProgress rejects a rebuild request while another runs.
	ErrRebuildInProgress = errors.New("rebuild already in progress")
	// ErrNoCorpusSource is returned when a rebuild is requested but no
	// corpus source is configured.
	ErrNoCorpusSource = errors.New("no corpus source configured")
	ErrTimeout        = errors.New("operation timed out")
	ErrInternal       = errors.New("internal error")
)

// AppError attaches a caller-facing message and status code to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Invalidf builds an ErrInvalidInput AppError with a 400 status.
func Invalidf(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrRebuildInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrNoCorpusSource):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
