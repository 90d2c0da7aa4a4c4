// File: internal/insight/errors.go
package insight

import "fmt"

// ErrorCode classifies fatal insight failures for structured reporting.
type ErrorCode string

const (
	// ErrCodePrecondition covers failures detected before or between model
	// calls: missing query, missing search area, empty assertion.
	ErrCodePrecondition ErrorCode = "PRECONDITION_FAILURE"
	// ErrCodeAmbiguousMatch signals the model claimed more than one element
	// for a locate call.
	ErrCodeAmbiguousMatch ErrorCode = "AMBIGUOUS_MATCH"
	// ErrCodeModelReply covers parse errors reported by the model reply with
	// no usable result alongside them.
	ErrCodeModelReply ErrorCode = "MODEL_REPLY_ERROR"
	// ErrCodeInvalidInput marks programmer errors, as opposed to normal
	// runtime validation failures.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// PreconditionError is a fatal failure raised when a call cannot proceed.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// Code returns the structured error code.
func (e *PreconditionError) Code() ErrorCode { return ErrCodePrecondition }

// AmbiguityError is raised when reconciliation leaves more than one resolved
// element, which signals an ambiguous or buggy model reply. It is raised only
// after the diagnostic dump has been emitted.
type AmbiguityError struct {
	Count int
	Query string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous locate result: model matched %d elements for %q, expected at most one", e.Count, e.Query)
}

// Code returns the structured error code.
func (e *AmbiguityError) Code() ErrorCode { return ErrCodeAmbiguousMatch }

// InvalidInputError marks API misuse by the calling program. It is kept
// distinct from PreconditionError so callers can tell a coding mistake from a
// runtime condition.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

// Code returns the structured error code.
func (e *InvalidInputError) Code() ErrorCode { return ErrCodeInvalidInput }

// ModelReplyError carries the joined parse errors from a model reply that had
// no usable result alongside them.
type ModelReplyError struct {
	Detail string
}

func (e *ModelReplyError) Error() string { return e.Detail }

// Code returns the structured error code.
func (e *ModelReplyError) Code() ErrorCode { return ErrCodeModelReply }
