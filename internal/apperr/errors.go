// Package apperr defines the error taxonomy shared by the persistence core
// and its outer surfaces.
package apperr

import "errors"

// Storage and migration failures. These degrade the session to memory-only
// operation; they are never fatal.
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrWriteFailed        = errors.New("write failed")
	ErrReadFailed         = errors.New("read failed")
	ErrMigrationParse     = errors.New("legacy data could not be parsed")
)

// Validation failures. Reported to the user with no state change.
var (
	ErrWouldEmptyCollection = errors.New("at least one note must remain")
	ErrNoSelection          = errors.New("no notes selected")
	ErrInvalidFormat        = errors.New("invalid format: expected a JSON array of notes")
	ErrParse                = errors.New("invalid JSON")
	ErrNotFound             = errors.New("not found")
)

// IsValidation reports whether err is a user-facing validation error rather
// than a storage failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrWouldEmptyCollection) ||
		errors.Is(err, ErrNoSelection) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrParse) ||
		errors.Is(err, ErrNotFound)
}
