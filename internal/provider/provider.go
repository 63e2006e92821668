package provider

import "fmt"

// Error wraps any failure inside a greeting or strategy provider so callers
// can recognize provider trouble and degrade gracefully.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
