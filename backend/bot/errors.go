package bot

import "fmt"

type ErrorCode string

const (
	ErrorValidationRejected ErrorCode = "VALIDATION_REJECTED"
	ErrorNotRegistered      ErrorCode = "NOT_REGISTERED"
	ErrorPreconditionUnmet  ErrorCode = "PRECONDITION_UNMET"
	ErrorNoCandidateFound   ErrorCode = "NO_CANDIDATE_FOUND"
	ErrorStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrorTransportFailed    ErrorCode = "TRANSPORT_FAILED"
)

// Error is the outcome of an interaction that did not go the happy way.
// User-visible codes are answered with a message and never leave Handle.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("bot: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("bot: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserVisible reports whether the error is answered to the user rather
// than failing the interaction.
func (e *Error) UserVisible() bool {
	switch e.Code {
	case ErrorValidationRejected, ErrorNotRegistered, ErrorPreconditionUnmet, ErrorNoCandidateFound:
		return true
	}
	return false
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func rejected(reason string) *Error {
	return newError(ErrorValidationRejected, reason, nil)
}

func storeError(reason string, err error) *Error {
	return newError(ErrorStoreUnavailable, reason, err)
}
