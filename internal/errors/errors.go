package errors

import (
	"errors"
	"fmt"
)

var (
	ErrStoreRetrieve   = errors.New("failed to retrieve from parameter store")
	ErrStoreWrite      = errors.New("failed to store in parameter store")
	ErrNotFound        = errors.New("not found")
	ErrBuildInProgress = errors.New("build already in progress for entity")
	ErrInvalidEntity   = errors.New("invalid entity")
)

// InputError reports a fault in what the caller asked for, such as a missing or
// unknown deployment target. It is never retried.
type InputError struct {
	Message string
	Err     error // optional sentinel the fault belongs to
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError returns an *InputError with a formatted message.
func NewInputError(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// NewInvalidEntityError returns an *InputError that matches ErrInvalidEntity.
func NewInvalidEntityError(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...), Err: ErrInvalidEntity}
}

// IsInputError reports whether err, or anything it wraps, is an *InputError.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}
