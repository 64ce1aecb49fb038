package npy

import (
	"errors"
	"fmt"
)

// Common errors. Every decode failure is returned as a *FormatError wrapping
// one of these.
var (
	ErrInvalidMagic       = errors.New("invalid magic string")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidHeader      = errors.New("invalid header")
	ErrUnsupportedDType   = errors.New("unsupported dtype")
	ErrSizeMismatch       = errors.New("payload size does not match header")
)

// FormatError describes a malformed NPY blob.
type FormatError struct {
	Err     error  // One of the sentinel errors above
	Details string // Additional details
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Details == "" {
		return "npy: " + e.Err.Error()
	}
	return fmt.Sprintf("npy: %s: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel error.
func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErrorf(err error, format string, args ...any) *FormatError {
	return &FormatError{Err: err, Details: fmt.Sprintf(format, args...)}
}
