package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// PreconditionKind identifies which start-of-analysis check failed.
type PreconditionKind string

const (
	NoDocument        PreconditionKind = "no_document"
	EmptySelection    PreconditionKind = "empty_selection"
	MissingCredential PreconditionKind = "missing_credential"
	Busy              PreconditionKind = "busy"
)

// PreconditionError is returned before any network call when an analysis
// cannot start.
type PreconditionError struct {
	Kind   PreconditionKind
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// ErrEmptyResponse is wrapped in a BackendError when the model returns no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// BackendError wraps transport, authentication and empty-response failures
// of the LLM call.
type BackendError struct {
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("analysis backend %s failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("analysis backend failed: %v", e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// MalformedResponseError means the sanitized response text was not a JSON
// object. Sanitized is kept for diagnostics only.
type MalformedResponseError struct {
	Sanitized string
	Err       error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("AI returned malformed JSON: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ValidationError lists the required keys absent from a parsed response, in
// schema order.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("incomplete AI response, missing field(s): %s", strings.Join(e.Missing, ", "))
}
