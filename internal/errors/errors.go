package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the OCR highlight worker
 *
 * Only loading blocks can fail. Indexing and matching are total, and an
 * empty highlight is a normal result rather than an error.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Block loading errors
	ErrorOCRLoadFailed     ErrorCode = "OCR_LOAD_FAILED"
	ErrorBlockDecodeFailed ErrorCode = "BLOCK_DECODE_FAILED"

	// Request errors
	ErrorInvalidDocumentRef ErrorCode = "INVALID_DOCUMENT_REF"

	// Network errors
	ErrorAPICallFailed     ErrorCode = "API_CALL_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
)

// HighlightError represents a structured error tied to one document
type HighlightError struct {
	Code           ErrorCode
	Message        string
	OrganizationID string
	DocumentID     string
	Timestamp      time.Time
	Details        map[string]interface{}
	Cause          error
}

func (e *HighlightError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HighlightError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

// NewOCRLoadError reports that blocks for a document could not be fetched.
func NewOCRLoadError(orgID, docID string, cause error) *HighlightError {
	return &HighlightError{
		Code:           ErrorOCRLoadFailed,
		Message:        fmt.Sprintf("Failed to load OCR blocks for document %s", docID),
		OrganizationID: orgID,
		DocumentID:     docID,
		Timestamp:      time.Now(),
		Cause:          cause,
	}
}

func NewBlockDecodeError(source string, cause error) *HighlightError {
	return &HighlightError{
		Code:      ErrorBlockDecodeFailed,
		Message:   fmt.Sprintf("Failed to decode OCR blocks from %s", source),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"source": source,
		},
		Cause: cause,
	}
}

func NewInvalidDocumentRefError(orgID, docID string, cause error) *HighlightError {
	return &HighlightError{
		Code:           ErrorInvalidDocumentRef,
		Message:        "Organization and document ids must be UUIDs",
		OrganizationID: orgID,
		DocumentID:     docID,
		Timestamp:      time.Now(),
		Cause:          cause,
	}
}

func NewAPICallFailedError(endpoint string, statusCode int, body string) *HighlightError {
	return &HighlightError{
		Code:      ErrorAPICallFailed,
		Message:   fmt.Sprintf("%s returned status %d", endpoint, statusCode),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"endpoint":    endpoint,
			"status_code": statusCode,
			"body":        body,
		},
	}
}

func NewProcessingTimeoutError(taskID string, duration time.Duration, cause error) *HighlightError {
	return &HighlightError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Highlight task %s timed out after %v", taskID, duration),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"task_id":          taskID,
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

// HasCode reports whether err wraps a HighlightError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var he *HighlightError
	if !stderrors.As(err, &he) {
		return false
	}
	if he.Code == code {
		return true
	}
	return HasCode(he.Cause, code)
}

// IsOCRLoadError reports whether err is (or wraps) a block load failure.
func IsOCRLoadError(err error) bool {
	return HasCode(err, ErrorOCRLoadFailed)
}

// ToMap converts error to map for result payloads
func (e *HighlightError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.OrganizationID != "" {
		result["organization_id"] = e.OrganizationID
	}
	if e.DocumentID != "" {
		result["document_id"] = e.DocumentID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
