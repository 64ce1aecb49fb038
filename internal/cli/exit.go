package cli

import (
	"errors"
	"fmt"
)

// Process exit statuses.
const (
	ExitOK      = 0 // Success; every compared key passed
	ExitFailure = 1 // The command ran and reported a failing outcome
	ExitUsage   = 2 // Usage, configuration or I/O error
)

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have already written its own
// output.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Exit returns nil for code 0 and an *ExitError otherwise.
func Exit(code int) error {
	if code == ExitOK {
		return nil
	}
	return &ExitError{Code: code}
}

// ExitStatus maps an error returned by Execute to a process exit status and
// reports whether the error message should be printed.
func ExitStatus(err error) (code int, printErr bool) {
	if err == nil {
		return ExitOK, false
	}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode(), false
	}
	return ExitUsage, true
}
