package model

import "errors"

// Sentinel errors shared by the storage, app and engine layers. Wrap them with
// %w and check them with errors.Is.
var (
	// ErrNotFound is returned when a run record or tool doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a run ID is recorded twice.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned for invalid policies, requests or configuration.
	ErrNotValid = errors.New("not valid")
)
