package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument is returned for empty user IDs, keys or nil records.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned when a closed store is used.
	ErrClosed = errors.New("store closed")
)

// Error records a failed store operation.
type Error struct {
	// Backend is the backend name (memory, sqlite, postgres).
	Backend string

	// Op is the operation that failed, e.g. "append_turn".
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s store: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: backend, Op: op, Err: err}
}

func invalid(backend, op, msg string) error {
	return &Error{Backend: backend, Op: op, Err: fmt.Errorf("%w: %s", ErrInvalidArgument, msg)}
}

// checkProfileKey validates the arguments of UpsertLongTerm.
func checkProfileKey(backend, userID, key string) error {
	if userID == "" || key == "" {
		return invalid(backend, "upsert_long_term", "user id and key required")
	}
	if strings.ContainsRune(key, '"') {
		return invalid(backend, "upsert_long_term", fmt.Sprintf("key %q must not contain double quotes", key))
	}
	return nil
}
