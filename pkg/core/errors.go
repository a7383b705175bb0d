package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrReadOnly      = errors.New("storage is in read-only mode")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrInvalidKey    = errors.New("invalid slot key")
	ErrSerialization = errors.New("value could not be serialized")
	ErrNotWatchable  = errors.New("storage does not support watching")
	ErrNotEnumerable = errors.New("storage does not support listing keys")

	// ErrInvalidOwner is also an ErrInvalidKey.
	ErrInvalidOwner = fmt.Errorf("%w: invalid owner", ErrInvalidKey)
)

// StorageError describes a failed slot operation.
// It is returned by stores whose in-memory value stayed authoritative while
// the write did not reach durable storage.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Recoverable reports whether the caller can keep working from memory:
// quota, serialization and read-only failures lose durability but not state.
func (e *StorageError) Recoverable() bool {
	return errors.Is(e.Err, ErrQuotaExceeded) ||
		errors.Is(e.Err, ErrSerialization) ||
		errors.Is(e.Err, ErrReadOnly)
}

// IsRecoverable reports whether err is a recoverable StorageError.
func IsRecoverable(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Recoverable()
	}
	return false
}
