package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while executing a transaction.
//
// Runtime errors include:
//   - Access denied: an ACL rule denies the operation, or no rule allows it
//   - Resource not found: a registry or resource does not exist (or cannot be read)
//   - Resource exists: a resource with the same identifier is already stored
//   - Invalid resource: a document does not conform to its model
//   - No network: no business network is installed
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// TransactionID identifies the affected transaction, if any.
	TransactionID string

	// Rule names the ACL rule that decided an access error, if any.
	Rule string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeAccessDenied indicates the participant may not perform the operation.
	ErrCodeAccessDenied RuntimeErrorCode = "ACCESS_DENIED"

	// ErrCodeResourceNotFound indicates a registry or resource does not exist.
	ErrCodeResourceNotFound RuntimeErrorCode = "RESOURCE_NOT_FOUND"

	// ErrCodeResourceExists indicates a resource with the same identifier exists.
	ErrCodeResourceExists RuntimeErrorCode = "RESOURCE_EXISTS"

	// ErrCodeInvalidResource indicates a document does not conform to its model.
	ErrCodeInvalidResource RuntimeErrorCode = "INVALID_RESOURCE"

	// ErrCodeNoNetwork indicates no business network is installed.
	ErrCodeNoNetwork RuntimeErrorCode = "NO_NETWORK"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.TransactionID != "" {
		msg = fmt.Sprintf("%s (transaction=%s)", msg, e.TransactionID)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsAccessError returns true if the error is an access denied error.
// Uses errors.As to handle wrapped errors.
func IsAccessError(err error) bool {
	return hasCode(err, ErrCodeAccessDenied)
}

// IsNotFoundError returns true if the error is a resource not found error.
func IsNotFoundError(err error) bool {
	return hasCode(err, ErrCodeResourceNotFound)
}

// IsExistsError returns true if the error is a resource exists error.
func IsExistsError(err error) bool {
	return hasCode(err, ErrCodeResourceExists)
}

// IsInvalidResourceError returns true if the error is an invalid resource error.
func IsInvalidResourceError(err error) bool {
	return hasCode(err, ErrCodeInvalidResource)
}

// IsNoNetworkError returns true if the error is a no network error.
func IsNoNetworkError(err error) bool {
	return hasCode(err, ErrCodeNoNetwork)
}

// NewAccessError creates a RuntimeError for a denied operation. rule is
// empty when no rule matched.
func NewAccessError(participant, operation, resource, rule string) *RuntimeError {
	msg := fmt.Sprintf("participant '%s' does not have '%s' access to resource '%s'", participant, operation, resource)
	return &RuntimeError{
		Code:    ErrCodeAccessDenied,
		Message: msg,
		Rule:    rule,
	}
}

// NewNotFoundError creates a RuntimeError for an object missing from a
// registry. Objects the participant may not read are reported the same way.
func NewNotFoundError(id, registryType, registryID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeResourceNotFound,
		Message: fmt.Sprintf("object with ID '%s' in collection with ID '%s:%s' does not exist", id, registryType, registryID),
		Err:     cause,
	}
}

// NewRegistryNotFoundError creates a RuntimeError for a missing registry.
func NewRegistryNotFoundError(registryType, registryID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeResourceNotFound,
		Message: fmt.Sprintf("%s registry with ID '%s' does not exist", registryType, registryID),
		Err:     cause,
	}
}

// NewExistsError creates a RuntimeError for a duplicate identifier.
func NewExistsError(id, registryType, registryID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeResourceExists,
		Message: fmt.Sprintf("object with ID '%s' in collection with ID '%s:%s' already exists", id, registryType, registryID),
		Err:     cause,
	}
}

// NewInvalidResourceError creates a RuntimeError for a document that
// fails validation.
func NewInvalidResourceError(cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidResource,
		Message: cause.Error(),
		Err:     cause,
	}
}

// NewNoNetworkError creates a RuntimeError for a missing network.
func NewNoNetworkError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoNetwork,
		Message: "no business network has been installed",
	}
}

var errNoModels = errors.New("no model manager")
