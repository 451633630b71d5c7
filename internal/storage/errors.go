package storage

import (
	"database/sql"
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Error kinds. Every error returned by the store for a failed storage operation is
// an *Error carrying one of these, so callers can tell them apart with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("constraint violation")
	ErrIO         = errors.New("storage failure")
)

// Error is a failed storage operation.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func notFound(op string) error {
	return &Error{Op: op, Kind: ErrNotFound}
}

// wrap classifies a driver error. Errors that already carry a kind pass through.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Kind: kindOf(err), Err: err}
}

func kindOf(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return ErrConstraint
	}
	return ErrIO
}
