package querycompiler

import (
	"errors"
	"fmt"
)

// ErrQueryNotFound is returned when a query name or identifier is unknown.
var ErrQueryNotFound = errors.New("the specified query does not exist")

// CompileError reports a query that cannot be compiled.
type CompileError struct {
	Query   string // Query name, empty for ad-hoc statements
	Message string
}

func (e *CompileError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("query %s: %s", e.Query, e.Message)
	}
	return e.Message
}

// IsCompileError returns true if err is a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// ParameterError reports a violation of a query's parameter contract.
type ParameterError struct {
	Name    string // Offending parameter, empty when none applies
	Message string
}

func (e *ParameterError) Error() string {
	return e.Message
}

// IsParameterError returns true if err is a ParameterError.
func IsParameterError(err error) bool {
	var pe *ParameterError
	return errors.As(err, &pe)
}

func compileErrorf(format string, args ...any) error {
	return &CompileError{Message: fmt.Sprintf(format, args...)}
}
