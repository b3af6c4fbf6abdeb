package storage

import (
	"errors"
	"fmt"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

// StoreError wraps any transport or query failure so callers can map all
// persistence trouble to one class of response.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err originated in the persistence layer.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
