// Package common defines shared constants and sentinel errors used across
// the layers of GophDrive. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.

	// ErrNotFound is returned when an entry, folder or pending upload does
	// not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a sibling name collision, or when a
	// duplicate upload completion loses the race.
	ErrConflict = errors.New("name conflict")

	// Upload lifecycle errors.

	// ErrIncompleteUpload is returned when completion is requested before
	// every declared chunk has arrived, or when the pending record is
	// already gone because another call finalized it first.
	ErrIncompleteUpload = errors.New("upload is incomplete")

	// ErrInvalidChunk is returned for a malformed chunk payload, an index
	// outside the declared range, or a totalChunks value that contradicts
	// an earlier submission.
	ErrInvalidChunk = errors.New("invalid chunk")

	// Validation errors (illegal names etc.).
	ErrValidation = errors.New("validation error")

	// ErrStorage wraps object-store failures so callers can distinguish
	// transient backend trouble from terminal errors.
	ErrStorage = errors.New("storage failure")
)
