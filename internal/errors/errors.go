/**
 * Custom error types for the OCR pipeline worker
 *
 * The pipeline distinguishes four failure classes: engine call failures
 * (retryable, document-fatal only for the primary OCR extraction), parse
 * failures (document-fatal, surfaced with raw response context), geometry
 * failures (absorbed locally by coordinate repair) and resource failures
 * (page-scoped, the affected figure is dropped).
 */

package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Remote engine errors
	ErrorEngineCall  ErrorCode = "ENGINE_ERROR"
	ErrorRateLimited ErrorCode = "RATE_LIMITED"

	// Data errors
	ErrorParse    ErrorCode = "PARSE_ERROR"
	ErrorGeometry ErrorCode = "GEOMETRY_ERROR"
	ErrorResource ErrorCode = "RESOURCE_ERROR"

	// Infrastructure errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
)

// PipelineError represents a structured pipeline error
type PipelineError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error

	// RetryAfter carries an engine-provided wait hint for rate-limit
	// responses; zero when the engine gave none.
	RetryAfter time.Duration
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewEngineError(jobID string, operation string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorEngineCall,
		Message:   fmt.Sprintf("engine call failed: %s", operation),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause: cause,
	}
}

func NewRateLimitError(operation string, retryAfter time.Duration, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorRateLimited,
		Message:   fmt.Sprintf("engine rate limited: %s", operation),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"operation":   operation,
			"retry_after": retryAfter.String(),
		},
		Cause:      cause,
		RetryAfter: retryAfter,
	}
}

func NewParseError(jobID string, context string, raw string, cause error) *PipelineError {
	// Keep a bounded slice of the raw response for diagnosis.
	if len(raw) > 512 {
		raw = raw[:512] + "..."
	}
	return &PipelineError{
		Code:      ErrorParse,
		Message:   fmt.Sprintf("engine response not parseable: %s", context),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"context":      context,
			"raw_response": raw,
		},
		Cause: cause,
	}
}

func NewGeometryError(message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorGeometry,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewResourceError(jobID string, page int, reason string) *PipelineError {
	return &PipelineError{
		Code:      ErrorResource,
		Message:   reason,
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page": page,
		},
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorStorageFailed,
		Message:   "failed to store processing results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// IsRateLimited reports whether err carries a rate-limit code anywhere in
// its cause chain, and returns the engine-provided wait hint when present.
// Rate-limit errors arrive wrapped in an engine-call error, so a single
// errors.As match is not enough.
func IsRateLimited(err error) (time.Duration, bool) {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok && pe.Code == ErrorRateLimited {
			return pe.RetryAfter, true
		}
		err = errors.Unwrap(err)
	}
	return 0, false
}

// IsParseError reports whether err carries a document-fatal parse failure
// anywhere in its cause chain.
func IsParseError(err error) bool {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok && pe.Code == ErrorParse {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// ToMap converts error to map for database storage
func (e *PipelineError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
