package script

import (
	"errors"
	"fmt"

	"go.starlark.net/resolve"
	"go.starlark.net/syntax"
)

// CompileError reports a script that cannot be parsed or resolved.
type CompileError struct {
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileError returns true if err is a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// newCompileError converts parser and resolver errors, keeping the first
// reported position.
func newCompileError(file string, err error) *CompileError {
	ce := &CompileError{File: file, Message: err.Error(), Err: err}
	var pos syntax.Position
	var se syntax.Error
	var rl resolve.ErrorList
	switch {
	case errors.As(err, &se):
		pos, ce.Message = se.Pos, se.Msg
	case errors.As(err, &rl) && len(rl) > 0:
		pos, ce.Message = rl[0].Pos, rl[0].Msg
	}
	if pos.Line > 0 {
		ce.Line, ce.Column = int(pos.Line), int(pos.Col)
	}
	return ce
}

// ErrAPIUnavailable is returned by runtime API functions called where no
// runtime API is bound, such as from access control conditions.
var ErrAPIUnavailable = errors.New("the runtime API is not available")
