package transformer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a definition lookup by scope and name
	// finds nothing in the registry.
	ErrNotFound = errors.New("transformer definition not found")
)

// DuplicateError reports an attempt to register a definition whose name
// is already taken within the same scope.
type DuplicateError struct {
	Name  string
	Scope Scope
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("transformer definition %q already registered in scope %q", e.Name, e.Scope)
}

// IsDuplicateError reports whether err is (or wraps) a DuplicateError.
func IsDuplicateError(err error) bool {
	var de *DuplicateError
	return errors.As(err, &de)
}
