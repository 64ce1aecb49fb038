package npz

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/born-ml/parity/internal/npy"
	"github.com/born-ml/parity/internal/tensor"
)

// Reader gives random access to the arrays of an archive.
type Reader struct {
	file    *os.File // nil when built with NewReader
	keys    []string
	entries map[string]*zip.File
	ignored []string // Non-directory entries without the .npy suffix
}

// NewReader indexes the archive held by r. Entries not ending in .npy are
// skipped and listed by Ignored. It returns a *tensor.DuplicateKeyError if two entries share a key.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	rd := &Reader{entries: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		key, ok := strings.CutSuffix(f.Name, EntrySuffix)
		if !ok {
			rd.ignored = append(rd.ignored, f.Name)
			continue
		}
		if _, dup := rd.entries[key]; dup {
			return nil, &tensor.DuplicateKeyError{Key: key}
		}
		rd.keys = append(rd.keys, key)
		rd.entries[key] = f
	}
	return rd, nil
}

// Open opens the archive at path for random access. Close releases the file.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: reading user-supplied artifact paths is the purpose
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	rd, err := NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rd.file = f
	return rd, nil
}

// Keys returns the array keys in zip directory order.
func (r *Reader) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Ignored returns the names of entries that are not arrays, in directory order.
func (r *Reader) Ignored() []string {
	out := make([]string, len(r.ignored))
	copy(out, r.ignored)
	return out
}

// Has reports whether the archive holds key.
func (r *Reader) Has(key string) bool {
	_, ok := r.entries[key]
	return ok
}

// Array decodes the entry stored under key.
func (r *Reader) Array(key string) (*tensor.Array, error) {
	f, ok := r.entries[key]
	if !ok {
		return nil, fmt.Errorf("npz: no entry for key %q", key)
	}
	return decodeEntry(f)
}

// Set decodes every entry into a Set in directory order.
func (r *Reader) Set() (*tensor.Set, error) {
	set := tensor.NewSet()
	for _, key := range r.keys {
		a, err := decodeEntry(r.entries[key])
		if err != nil {
			return nil, err
		}
		if err := set.Add(key, a); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

func decodeEntry(f *zip.File) (*tensor.Array, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &FormatError{Entry: f.Name, Err: err}
	}
	defer rc.Close()

	var buf bytes.Buffer
	if f.UncompressedSize64 < 1<<31 {
		buf.Grow(int(f.UncompressedSize64))
	}
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, &FormatError{Entry: f.Name, Err: err}
	}
	a, err := npy.Unmarshal(buf.Bytes())
	if err != nil {
		return nil, &FormatError{Entry: f.Name, Err: err}
	}
	return a, nil
}

// Decode reads every array of the archive held by r.
func Decode(r io.ReaderAt, size int64) (*tensor.Set, error) {
	rd, err := NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return rd.Set()
}

// ReadFile decodes the archive at path.
func ReadFile(path string) (*tensor.Set, error) {
	rd, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	set, err := rd.Set()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
