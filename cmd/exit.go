package cmd

import (
	"context"
	"errors"

	"github.com/gordyrad/green-refactor/internal/analysis"
	"github.com/gordyrad/green-refactor/internal/workspace"
)

// ExitError carries the process exit code of a failed command. Reported
// errors were already shown to the user.
type ExitError struct {
	Code     int
	Err      error
	Reported bool
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the exit code for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// exitCodeFor maps analysis failures to exit codes:
//
//	2 - backend, malformed or incomplete model response
//	3 - precondition or configuration error
//	4 - the optimized code could not be applied
//	130 - interrupted
func exitCodeFor(err error) int {
	var (
		pre       *analysis.PreconditionError
		backend   *analysis.BackendError
		malformed *analysis.MalformedResponseError
		invalid   *analysis.ValidationError
		apply     *workspace.EditApplyError
	)
	switch {
	case errors.As(err, &pre):
		return 3
	case errors.Is(err, context.Canceled):
		return 130
	case errors.As(err, &backend), errors.As(err, &malformed), errors.As(err, &invalid):
		return 2
	case errors.As(err, &apply):
		return 4
	default:
		return 1
	}
}
