package npz

import "fmt"

// FormatError reports a malformed archive or a malformed entry inside it.
type FormatError struct {
	Entry string // Zip entry name, empty for container-level errors
	Err   error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("npz: %v", e.Err)
	}
	return fmt.Sprintf("npz: entry %q: %v", e.Entry, e.Err)
}

// Unwrap returns the underlying error, typically an *npy.FormatError.
func (e *FormatError) Unwrap() error {
	return e.Err
}
