package template

import (
	"errors"
	"fmt"
)

// ResolutionError reports a mapping render that could not be completed, most
// commonly a path with no value and no fallback. The failure is scoped to the
// single render that produced it; callers isolate it from sibling
// transformers.
type ResolutionError struct {
	// Template is the string being rendered when resolution failed.
	Template string
	// Expr is the offending expression, without the surrounding braces.
	Expr string
	// Reason describes the failure when it was not a plain missing path.
	Reason string
	// Cause holds an underlying error, e.g. one returned by a function call.
	Cause error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve {{%s}}", e.Expr)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Template != "" && e.Template != "{{"+e.Expr+"}}" {
		msg += fmt.Sprintf(" in template %q", e.Template)
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *ResolutionError) Unwrap() error { return e.Cause }

// IsResolutionError reports whether err is (or wraps) a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
