package store

import (
	"context"
	"errors"
	"fmt"

	"airhome/internal/validation"
)

// StorageError reports a backend I/O failure: disk, network, driver or an
// expired deadline. Callers must not treat it as a normal miss.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Wrap converts err into a *StorageError unless it is nil, already a
// StorageError, or one of the domain signals callers are expected to handle.
func Wrap(op string, err error) error {
	if err == nil || isDomain(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is a backend failure.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsNotFound reports whether err is one of the not-found signals.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrHomeNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrFavouriteNotFound)
}

// Checkpoint returns a StorageError when ctx is already done. In-process
// backends call it before touching state so deadlines surface the same way
// they do for network drivers.
func Checkpoint(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return nil
}

func isDomain(err error) bool {
	if IsNotFound(err) || errors.Is(err, ErrFavouriteExists) || errors.Is(err, ErrUserExists) {
		return true
	}
	var ve *validation.Error
	return errors.As(err, &ve)
}
