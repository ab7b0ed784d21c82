package core

import (
	"errors"
	"fmt"
)

// Error is a typed session error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Stage   string    `json:"stage,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors by where in the session they originate.
type ErrorType string

const (
	// ErrAcquisition covers credential, capture-device and connection setup
	// failures. Fatal to session start, except the microphone which degrades
	// to listen-only.
	ErrAcquisition ErrorType = "acquisition_error"

	// ErrTransport covers mid-session service errors and unexpected closes.
	// Ends the session; never retried.
	ErrTransport ErrorType = "transport_error"

	// ErrPersistence covers archive read/write failures. Degrades to an
	// empty archive; never blocks the live session.
	ErrPersistence ErrorType = "persistence_error"

	// ErrSummarization covers one-shot completion failures in the report
	// view. Isolated there and retryable by explicit user action.
	ErrSummarization ErrorType = "summarization_error"
)

// NewAcquisitionError creates an acquisition error for a startup stage
// (token, screen, mic, connect).
func NewAcquisitionError(stage, message string, cause error) *Error {
	return &Error{Type: ErrAcquisition, Stage: stage, Message: message, Cause: cause}
}

// NewTransportError creates a transport error for a connection stage
// (dial, handshake, read, write).
func NewTransportError(stage, message string, cause error) *Error {
	return &Error{Type: ErrTransport, Stage: stage, Message: message, Cause: cause}
}

// NewPersistenceError creates a persistence error for an archive stage
// (load, save).
func NewPersistenceError(stage, message string, cause error) *Error {
	return &Error{Type: ErrPersistence, Stage: stage, Message: message, Cause: cause}
}

// NewSummarizationError creates a summarization error for a completion
// stage (request, response).
func NewSummarizationError(stage, message string, cause error) *Error {
	return &Error{Type: ErrSummarization, Stage: stage, Message: message, Cause: cause}
}

// Retryable returns true if the operation may be retried by user action.
// Only summarization qualifies; everything else ends or degrades.
func (e *Error) Retryable() bool {
	return e.Type == ErrSummarization
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// TypeOf returns the ErrorType of err if it is (or wraps) a *Error,
// and "" otherwise.
func TypeOf(err error) ErrorType {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ""
}
