package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/born-ml/parity/internal/npy"
	"github.com/born-ml/parity/internal/tensor"
)

// Dumper writes one .npy file per intermediate result into a directory.
// It is the producer side of an activation comparison; both producers use
// the same staged keys so the comparator can align them.
//
// A Dumper is safe for concurrent use.
type Dumper struct {
	dir string

	mu   sync.Mutex
	keys []string
	seen map[string]struct{}
}

// NewDumper creates dir if needed and returns a Dumper writing into it.
func NewDumper(dir string) (*Dumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dump directory: %w", err)
	}
	return &Dumper{dir: dir, seen: make(map[string]struct{})}, nil
}

// Dir returns the output directory.
func (d *Dumper) Dir() string {
	return d.dir
}

// Stage writes a under StageKey(stage, suffix).
func (d *Dumper) Stage(stage int, suffix string, a *tensor.Array) error {
	key, err := StageKey(stage, suffix)
	if err != nil {
		return err
	}
	return d.Dump(key, a)
}

// Dump writes a to <dir>/<key>.npy. A key can be written only once per
// Dumper; a repeat returns *tensor.DuplicateKeyError.
func (d *Dumper) Dump(key string, a *tensor.Array) error {
	if err := validateFileKey(key); err != nil {
		return err
	}
	d.mu.Lock()
	if _, dup := d.seen[key]; dup {
		d.mu.Unlock()
		return &tensor.DuplicateKeyError{Key: key}
	}
	d.seen[key] = struct{}{}
	d.keys = append(d.keys, key)
	d.mu.Unlock()

	return npy.WriteFile(filepath.Join(d.dir, key+ExtNPY), a)
}

// Keys returns the keys written so far, in write order.
func (d *Dumper) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// ShapeError reports an array whose shape differs from the expected one.
type ShapeError struct {
	Key  string
	Got  tensor.Shape
	Want tensor.Shape
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch %s vs %s", e.Key, e.Got, e.Want)
}

// ExpectShape returns a *ShapeError unless a has exactly the given dims.
func ExpectShape(key string, a *tensor.Array, dims ...int) error {
	want := tensor.Shape(dims)
	if !a.Shape().Equal(want) {
		return &ShapeError{Key: key, Got: a.Shape().Clone(), Want: want}
	}
	return nil
}
