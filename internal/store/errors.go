package store

import "errors"

// Sentinel errors returned (wrapped) by registry and resource operations.
// Test with errors.Is.
var (
	ErrRegistryNotFound = errors.New("registry does not exist")
	ErrResourceNotFound = errors.New("resource does not exist")
	ErrResourceExists   = errors.New("resource already exists")
)
