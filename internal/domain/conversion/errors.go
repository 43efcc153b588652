package conversion

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means the budget does not exist.
	ErrNotFound = errors.New("budget not found")

	// ErrEmptyBudget means the budget has no items to convert.
	ErrEmptyBudget = errors.New("budget has no items")

	// ErrAlreadyConverted means the budget has already been converted. It is
	// recoverable: the existing treatment is returned alongside it.
	ErrAlreadyConverted = errors.New("budget already converted")

	// ErrValidation covers malformed payment plans and non-convertible
	// statuses, detected before any write.
	ErrValidation = errors.New("budget not convertible")
)

// AlreadyConvertedError carries the treatment produced by the earlier
// conversion so callers can treat the conflict as a soft success.
type AlreadyConvertedError struct {
	TreatmentID uuid.UUID
}

func (e *AlreadyConvertedError) Error() string {
	return fmt.Sprintf("budget already converted to treatment %s", e.TreatmentID)
}

func (e *AlreadyConvertedError) Unwrap() error { return ErrAlreadyConverted }

// StorageError wraps a transaction failure. Nothing was committed.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("conversion storage failure: %v", e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }
