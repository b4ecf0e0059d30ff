package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a domain error with a structured error code.
// Codes have the form SP-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "SP-CKPT-5004")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error formats as "[CODE] message: details: cause".
func (e *DomainError) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Code, e.Message)}
	if e.Details != "" {
		parts = append(parts, e.Details)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any *DomainError with the same code, so the package-level
// values work as errors.Is targets after WithDetails or WithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Checkpoint errors. Open and write failures happen during Save and are
// recovered there; read and corruption failures stop the process at
// startup.
var (
	// ErrCheckpointOpen indicates the checkpoint destination could not be
	// created or opened for writing.
	ErrCheckpointOpen = NewDomainError("SP-CKPT-5001", "checkpoint open failed")

	// ErrCheckpointWrite indicates the record could not be written in full,
	// flushed to stable storage, or moved into place.
	ErrCheckpointWrite = NewDomainError("SP-CKPT-5002", "checkpoint write failed")

	// ErrCheckpointRead indicates an existing checkpoint could not be read.
	ErrCheckpointRead = NewDomainError("SP-CKPT-5003", "checkpoint read failed")

	// ErrCheckpointCorrupt indicates an existing checkpoint is truncated,
	// malformed, or fails its integrity check.
	ErrCheckpointCorrupt = NewDomainError("SP-CKPT-5004", "checkpoint corrupted")
)

var (
	// ErrInvalidConfig indicates the configuration failed validation.
	ErrInvalidConfig = NewDomainError("SP-SYS-4000", "invalid configuration")

	// ErrInternal indicates an unexpected internal error.
	ErrInternal = NewDomainError("SP-SYS-5000", "internal error")
)

// IsSaveError reports whether err is one of the errors Save recovers from
// locally (open or write failure).
func IsSaveError(err error) bool {
	return errors.Is(err, ErrCheckpointOpen) || errors.Is(err, ErrCheckpointWrite)
}

// IsFatalLoadError reports whether err must stop the process at startup.
func IsFatalLoadError(err error) bool {
	return errors.Is(err, ErrCheckpointRead) || errors.Is(err, ErrCheckpointCorrupt)
}
