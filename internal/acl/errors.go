package acl

import (
	"errors"
	"fmt"
)

// ErrRuleNotFound is returned when a bundle is asked to evaluate a rule
// it was not compiled with.
var ErrRuleNotFound = errors.New("the ACL rule does not exist")

// CompileError reports a rule whose condition cannot be compiled.
type CompileError struct {
	Rule      string
	Condition string
	Err       error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("ACL rule %s: condition %q: %v", e.Rule, e.Condition, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileError returns true if err is a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
