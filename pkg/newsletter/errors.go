package newsletter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a newsletter was not found
	ErrNotFound = errors.New("newsletter not found")

	// ErrAssetExists indicates an upload would overwrite an existing object
	ErrAssetExists = errors.New("asset already exists")

	// ErrAssetNotFound indicates an object was not found in storage
	ErrAssetNotFound = errors.New("asset not found")

	// ErrStorageBackendNotFound indicates no backend is registered for an asset class
	ErrStorageBackendNotFound = errors.New("storage backend not found")
)

// ValidationError reports caller input that violates a field constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StoreError wraps a failure reported by the relational store.
type StoreError struct {
	Op  string
	ID  int64
	Err error
}

func (e *StoreError) Error() string {
	if e.ID > 0 {
		return fmt.Sprintf("newsletter store operation %s failed for newsletter %d: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("newsletter store operation %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// AssetUploadError wraps a rejected upload.
type AssetUploadError struct {
	Class AssetClass
	Key   string
	Err   error
}

func (e *AssetUploadError) Error() string {
	return fmt.Sprintf("upload of %s to %s failed: %v", e.Key, e.Class, e.Err)
}

func (e *AssetUploadError) Unwrap() error {
	return e.Err
}

// AssetDeleteError wraps a failed asset removal. It is never fatal.
type AssetDeleteError struct {
	Class AssetClass
	Key   string
	Err   error
}

func (e *AssetDeleteError) Error() string {
	return fmt.Sprintf("delete of %s from %s failed: %v", e.Key, e.Class, e.Err)
}

func (e *AssetDeleteError) Unwrap() error {
	return e.Err
}

// StepError reports the fatal step that aborted a publish workflow.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("publish step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
