package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/parity/internal/bundle"
	"github.com/born-ml/parity/internal/npy"
	"github.com/born-ml/parity/internal/npz"
	"github.com/born-ml/parity/internal/tensor"
)

// SaveOptions controls Save.
type SaveOptions struct {
	NPZ    npz.Options          // Used for .npz outputs
	Bundle bundle.WriterOptions // Used for .pbnd outputs
}

// Save writes set to location. The form follows the extension: .npz and
// .pbnd write a single archive; anything else is a directory receiving one
// .npy file per key.
func Save(location string, set *tensor.Set, opts SaveOptions) error {
	switch KindFromPath(location) {
	case KindNPZ:
		return npz.WriteFile(location, set, opts.NPZ)
	case KindBundle:
		return bundle.WriteFile(location, set, opts.Bundle)
	case KindNPY:
		return fmt.Errorf("save %s: a single .npy file cannot hold a set; use a directory, %s or %s",
			location, ExtNPZ, ExtBundle)
	default:
		return saveDir(location, set)
	}
}

// saveDir writes every key into a staging directory next to dir and only
// then moves the files into place, so a failed save leaves dir untouched.
func saveDir(dir string, set *tensor.Set) error {
	keys := set.Keys()
	for _, key := range keys {
		if err := validateFileKey(key); err != nil {
			return err
		}
	}

	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, key := range keys {
		a, _ := set.Get(key)
		if err := npy.WriteFile(filepath.Join(staging, key+ExtNPY), a); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}

	_, err = os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.Chmod(staging, 0o755); err != nil {
			return fmt.Errorf("setting directory mode: %w", err)
		}
		if err := os.Rename(staging, dir); err != nil {
			return fmt.Errorf("renaming %s to %s: %w", staging, dir, err)
		}
		return nil
	case err != nil:
		return err
	}

	// dir already exists: keep its other files and replace ours.
	for _, key := range keys {
		name := key + ExtNPY
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return nil
}

// validateFileKey rejects keys that cannot be used as a plain file name.
func validateFileKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`+"\x00") {
		return fmt.Errorf("key %q cannot be stored as a file name", key)
	}
	return nil
}
