package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tools registry.
var (
	ErrNotFound      = errors.New("tool not found")
	ErrAlreadyExists = errors.New("tool already registered")
	ErrEmptyName     = errors.New("tool name is empty")
)

// InvalidArgumentsError reports a call whose arguments failed validation
// against the tool's parameter specs. Missing holds the required parameter
// names absent from the call, sorted.
type InvalidArgumentsError struct {
	Tool    string
	Missing []string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: missing required %v", e.Tool, e.Missing)
}

// ExecutionError wraps a handler failure with the tool name attached.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s execution failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func wrapName(sentinel error, name string) error {
	return fmt.Errorf("%w: %s", sentinel, name)
}
