// Package fsutil holds small filesystem helpers shared by the codecs.
package fsutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes the output of write to path atomically: the content goes
// to a temporary file in the same directory which is synced and renamed over
// path only after write returns nil. On any failure the temporary file is
// removed and path is left untouched.
func WriteFile(path string, write func(w io.Writer) error) error {
	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	temporaryPath := file.Name()

	fail := func(err error) error {
		file.Close()
		os.Remove(temporaryPath)
		return err
	}

	buffered := bufio.NewWriterSize(file, 1<<20)
	if err := write(buffered); err != nil {
		return fail(err)
	}
	if err := buffered.Flush(); err != nil {
		return fail(fmt.Errorf("writing temporary file: %w", err))
	}
	if err := file.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temporary file: %w", err))
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err := os.Chmod(temporaryPath, 0o644); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming %s to %s: %w", temporaryPath, path, err)
	}
	return nil
}
