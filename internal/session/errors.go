package session

import (
	"errors"
	"fmt"
)

// Kind classifies orchestration failures so callers can map them to
// transport-level responses without string matching.
type Kind string

const (
	// KindNotFound means the referenced session does not exist.
	KindNotFound Kind = "not_found"
	// KindAccessDenied means the session exists but belongs to another owner.
	KindAccessDenied Kind = "access_denied"
	// KindConfigurationMissing means no provider or model could be resolved.
	KindConfigurationMissing Kind = "configuration_missing"
	// KindProviderFailure means the model API failed after retries.
	KindProviderFailure Kind = "provider_failure"
	// KindToolFailure means tool execution failed in a way that aborted the
	// turn. Ordinary tool errors are reported to the model instead.
	KindToolFailure Kind = "tool_failure"
	// KindUnexpected covers everything else.
	KindUnexpected Kind = "unexpected"
)

// Error is a typed orchestration failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a typed failure without a cause.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// WrapError creates a typed failure wrapping a cause.
func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the failure kind, defaulting to KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
