package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a storage-level uniqueness constraint rejected
	// the write.
	ErrConflict = errors.New("repository: conflict")
)
