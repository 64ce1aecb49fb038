package bundle

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrHashMismatch       = errors.New("entry hash mismatch")
	ErrOffsetOverlap      = errors.New("entry offsets overlap")
	ErrOutOfBounds        = errors.New("entry extends beyond data section")
	ErrTooManyEntries     = errors.New("too many entries in file")
	ErrInvalidEntryName   = errors.New("invalid entry name")
	ErrIndexTooLarge      = errors.New("index exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrSizeMismatch       = errors.New("file size does not match header")
	ErrEntryTooLarge      = errors.New("entry raw size exceeds limit")
	ErrRawSizeMismatch    = errors.New("entry raw size does not match stored size")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "offset_overlap", "out_of_bounds")
	Entry   string // Primary entry name involved
	Entry2  string // Secondary entry name (for overlap errors)
	Details string // Additional details
	Err     error  // Matching sentinel, if any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Entry2 != "" {
		return fmt.Sprintf("%s: entries %q and %q: %s", e.Type, e.Entry, e.Entry2, e.Details)
	}
	if e.Entry != "" {
		return fmt.Sprintf("%s: entry %q: %s", e.Type, e.Entry, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap returns the sentinel error so errors.Is works on validation failures.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
