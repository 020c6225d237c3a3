package condition

import (
	"errors"
	"fmt"
)

// EvalError reports a condition that could not be parsed. Runtime evaluation
// never fails; only malformed input produces this error, and the transformer
// carrying the condition is skipped.
type EvalError struct {
	// Condition is the offending source text.
	Condition string
	// Cause is the underlying parse failure.
	Cause error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("malformed condition %q: %v", e.Condition, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *EvalError) Unwrap() error { return e.Cause }

// IsEvalError reports whether err is (or wraps) an EvalError.
func IsEvalError(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee)
}
