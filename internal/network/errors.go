package network

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/hyperledger-archives/composer-sub008/internal/compiler"
)

// Error code constants, shared with the CLI.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No network files found
	ErrCodeLoadFailed   = "E004" // Source file could not be parsed
	ErrCodeNotFound     = "E005" // Path or required file not found
	ErrCodeBuildFailed  = "E006" // CUE build or unification failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeMetadata     = "E008" // network.yaml is malformed or incomplete
	ErrCodeInstallation = "E009" // A compiler rejected the network
)

// ErrNetworkNotFound is returned when no installed network has a hash.
var ErrNetworkNotFound = errors.New("the business network is not installed")

// LoadError represents an error that occurred while loading a network.
type LoadError struct {
	Code    string
	File    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError checks if an error is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// cueError converts a CUE evaluation error, keeping the first position.
func cueError(code, file string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, File: file, Message: err.Error()}
	}
	le := &LoadError{Code: code, File: file, Message: errs[0].Error()}
	if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			File:    file,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, File: file, Message: err.Error()}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeBuildFailed
	case "kind":
		return compiler.ErrInvalidClassKind
	case "type":
		return compiler.ErrInvalidFieldType
	case "operation":
		return compiler.ErrInvalidOperation
	case "action":
		return compiler.ErrInvalidAction
	case "participant", "resource", "binding":
		return compiler.ErrUnknownBinding
	default:
		return ErrCodeGeneric
	}
}
