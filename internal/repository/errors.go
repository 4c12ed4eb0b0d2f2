package repository

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUsername indicates a username uniqueness violation on create.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrVersionConflict indicates a compare-and-swap update lost to a
	// concurrent writer; callers may re-read and retry.
	ErrVersionConflict = errors.New("version conflict")
)
