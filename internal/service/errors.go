package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when resolution is attempted before a
	// fingerprint is available.
	ErrNotReady = errors.New("fingerprint not ready")

	// ErrPersistence classifies every failure of the guest store.
	ErrPersistence = errors.New("guest persistence failed")

	// ErrFingerprintMismatch is returned when a supplied device signature
	// does not hash to the supplied fingerprint.
	ErrFingerprintMismatch = errors.New("signature does not match fingerprint")

	ErrInvalidEmail  = errors.New("invalid email address")
	ErrInvalidStatus = errors.New("invalid guest status")
	ErrInvalidFlag   = errors.New("invalid flag")
	ErrGuestNotFound = errors.New("guest not found")
	ErrGuestBlocked  = errors.New("guest is blocked")
	ErrEmailRequired = errors.New("verified email required to post")
)

// PersistenceError reports a failed store operation. It matches both
// ErrPersistence and the underlying cause with errors.Is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
