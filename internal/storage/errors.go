package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation references a missing
	// debt, income source, transaction or session.
	ErrNotFound = errors.New("not found")

	// ErrSessionExpired is returned when an operation is attempted against
	// an expired guest session.
	ErrSessionExpired = errors.New("guest session expired")

	// ErrUnauthenticated is returned when there is neither a guest session
	// nor a signed-in account.
	ErrUnauthenticated = errors.New("no active guest session or account")
)

// NotFound wraps ErrNotFound with the entity kind and ID.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// StorageError is a failure reading or writing on-device storage.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RemoteError is a failure of an insert, update, delete or select against
// the cloud store.
type RemoteError struct {
	Op    string
	Table string
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsRemoteError reports whether err is or wraps a *RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
