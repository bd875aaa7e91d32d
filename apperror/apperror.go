// Package apperror defines the failure taxonomy shared by the submission path
// and the worker. Every type unwraps to its cause so callers can keep using
// errors.Is / errors.As on the underlying error.
package apperror

import (
	"errors"
	"fmt"
)

// ErrNonRetryable marks an error after which the job has been moved to a
// terminal state. The consumer dead-letters such messages instead of
// requeueing them.
var ErrNonRetryable = errors.New("non-retryable error")

// ValidationError is returned synchronously to the submitter. A job is never
// enqueued for input that fails validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AssetMissingError means a deployment asset (font, template, disclaimer) or
// job input could not be found. It is not a per-job transient.
type AssetMissingError struct {
	Asset string
	Path  string
	Err   error
}

func (e *AssetMissingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asset missing: %s at %q: %v", e.Asset, e.Path, e.Err)
	}
	return fmt.Sprintf("asset missing: %s at %q", e.Asset, e.Path)
}

func (e *AssetMissingError) Unwrap() error { return e.Err }

// MediaReadError means the source video is missing, unreadable or has no
// parseable container metadata.
type MediaReadError struct {
	Path string
	Err  error
}

func (e *MediaReadError) Error() string {
	return fmt.Sprintf("media read %q: %v", e.Path, e.Err)
}

func (e *MediaReadError) Unwrap() error { return e.Err }

// TranscodeError carries the engine's diagnostic output for operator triage.
type TranscodeError struct {
	Message      string
	EngineStderr string
	Err          error
}

func (e *TranscodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcode: %s: %v", e.Message, e.Err)
	}
	return "transcode: " + e.Message
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// PublishError fails a job even though the artifact was rendered locally.
type PublishError struct {
	Key string
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %q: %v", e.Key, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Kind returns a short label for the taxonomy member err belongs to, or
// "internal" when it belongs to none.
func Kind(err error) string {
	var (
		validation *ValidationError
		asset      *AssetMissingError
		media      *MediaReadError
		transcode  *TranscodeError
		publish    *PublishError
	)
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &asset):
		return "asset_missing"
	case errors.As(err, &media):
		return "media_read"
	case errors.As(err, &transcode):
		return "transcode"
	case errors.As(err, &publish):
		return "publish"
	default:
		return "internal"
	}
}

// EngineStderr extracts the engine diagnostics from err, if any.
func EngineStderr(err error) string {
	var transcode *TranscodeError
	if errors.As(err, &transcode) {
		return transcode.EngineStderr
	}
	return ""
}
