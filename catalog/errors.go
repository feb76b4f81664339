package catalog

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrStorage marks every failure coming from the database. Callers render
	// it as a generic 500 without the underlying query text.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound is returned when a car id does not exist.
	ErrNotFound = errors.New("car not found")
)

func storageError(err error, op string) error {
	return errors.Mark(errors.Wrap(err, op), ErrStorage)
}
