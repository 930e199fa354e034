package domain

import (
	"errors"
	"fmt"
)

// Error is the typed failure returned by the negotiation engine, the
// authorization guard and the reconciliation processor.
//
// Storage failures are not Errors; they stay plain wrapped errors and are
// treated as transient by callers.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// AssignmentID identifies the affected assignment, if any.
	AssignmentID string

	// Current is the status observed when a CONFLICT was raised.
	Current Status

	// Raced is true when the conflict was detected at commit time, meaning a
	// concurrent writer changed the record after it was read.
	Raced bool

	// Err is the underlying cause (optional).
	Err error
}

// ErrorCode categorizes domain errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed or missing input.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeAuthorization indicates the actor lacks the required role or relationship.
	ErrCodeAuthorization ErrorCode = "AUTHORIZATION"

	// ErrCodeNotFound indicates the id is unknown (or invisible to the actor).
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict indicates a transition from the wrong current status.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeSignature indicates a webhook payload failed authenticity checks.
	ErrCodeSignature ErrorCode = "SIGNATURE"

	// ErrCodeGateway indicates the payment provider failed during intent creation.
	ErrCodeGateway ErrorCode = "GATEWAY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.AssignmentID != "" {
		msg = fmt.Sprintf("%s (assignment=%s)", msg, e.AssignmentID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsValidation(err error) bool    { return CodeOf(err) == ErrCodeValidation }
func IsAuthorization(err error) bool { return CodeOf(err) == ErrCodeAuthorization }
func IsNotFound(err error) bool      { return CodeOf(err) == ErrCodeNotFound }
func IsConflict(err error) bool      { return CodeOf(err) == ErrCodeConflict }
func IsSignature(err error) bool     { return CodeOf(err) == ErrCodeSignature }
func IsGateway(err error) bool       { return CodeOf(err) == ErrCodeGateway }

// NewValidationError creates an Error for malformed input.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewAuthorizationError creates an Error naming the relationship the actor lacks.
func NewAuthorizationError(assignmentID, required string) *Error {
	return &Error{
		Code:         ErrCodeAuthorization,
		Message:      "actor must be " + required,
		AssignmentID: assignmentID,
	}
}

// NewNotFoundError creates an Error for an unknown id.
func NewNotFoundError(kind, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

// NewConflictError creates an Error for a transition attempted from the wrong status.
func NewConflictError(assignmentID string, kind TransitionKind, current Status) *Error {
	return &Error{
		Code:         ErrCodeConflict,
		Message:      fmt.Sprintf("%s not allowed from status %s", kind, current),
		AssignmentID: assignmentID,
		Current:      current,
	}
}

// NewRaceError creates a CONFLICT detected at commit time.
func NewRaceError(assignmentID string, expected, current Status) *Error {
	return &Error{
		Code:         ErrCodeConflict,
		Message:      fmt.Sprintf("status changed concurrently (expected %s, found %s)", expected, current),
		AssignmentID: assignmentID,
		Current:      current,
		Raced:        true,
	}
}

// NewStaleQuoteError creates a raced CONFLICT for a response to a quote that
// was withdrawn or replaced after the responder saw it.
func NewStaleQuoteError(assignmentID string, current Status) *Error {
	return &Error{
		Code:         ErrCodeConflict,
		Message:      "quote changed since it was read",
		AssignmentID: assignmentID,
		Current:      current,
		Raced:        true,
	}
}

// NewSignatureError wraps a webhook verification failure.
func NewSignatureError(err error) *Error {
	return &Error{Code: ErrCodeSignature, Message: "webhook signature verification failed", Err: err}
}

// NewGatewayError wraps an upstream payment provider failure.
func NewGatewayError(err error) *Error {
	return &Error{Code: ErrCodeGateway, Message: "payment gateway request failed", Err: err}
}
