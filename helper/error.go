package helper

import "fmt"

// Error wraps an underlying error with the operation that failed.
type Error struct {
	Operation string
	Err       error
}

// NewError creates a new Error for the given operation.
func NewError(operation string, err error) error {
	return &Error{Operation: operation, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("error in %v: %v", e.Operation, e.Err)
}

// Unwrap returns the wrapped error so errors.Is and errors.As see through
// the operation context.
func (e *Error) Unwrap() error {
	return e.Err
}
