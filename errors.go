package storekit

import (
	"errors"
	"fmt"
)

// Common storage errors
var (
	ErrNotExist      = errors.New("object does not exist")
	ErrExist         = errors.New("object already exists")
	ErrClosed        = errors.New("file already closed")
	ErrInvalidMode   = errors.New("invalid mode")
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidOffset = errors.New("invalid offset")
	ErrNotSupported  = errors.New("operation not supported")
	ErrUnknownScheme = errors.New("unknown scheme")
)

// PathError records an error and the operation and URI that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError wraps err with the operation and URI that caused it.
// A nil err returns nil.
func NewPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}

// IsNotExist reports whether an error indicates that an object
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that an object
// already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsNotSupported reports whether an error indicates that the backend
// does not support the operation
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}
