package database

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

// ErrDuplicate matches any write rejected by a unique index.
var ErrDuplicate = errors.New("duplicate key")

// DuplicateError carries the violated constraint of a unique conflict.
type DuplicateError struct {
	Constraint string
	Err        error
}

func (e *DuplicateError) Error() string {
	return "duplicate key on " + e.Constraint + ": " + e.Err.Error()
}

func (e *DuplicateError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDuplicate) match.
func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// Translate turns a Postgres unique violation into a *DuplicateError and
// returns every other error unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &DuplicateError{Constraint: pqErr.Constraint, Err: err}
	}
	return err
}

// IsDuplicate reports whether err comes from a unique index conflict.
func IsDuplicate(err error) bool {
	return errors.Is(Translate(err), ErrDuplicate)
}
