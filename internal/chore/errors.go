package chore

import (
	"errors"
	"fmt"
)

// Domain errors. Callers match them with errors.Is; each is wrapped with
// context about the entity involved.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalid           = errors.New("invalid input")
)

// StorageError reports a persistence failure. It is never one of the domain
// errors above.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
