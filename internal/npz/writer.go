package npz

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/born-ml/parity/internal/fsutil"
	"github.com/born-ml/parity/internal/npy"
	"github.com/born-ml/parity/internal/tensor"
)

// EntrySuffix is appended to every key to form the zip entry name.
const EntrySuffix = ".npy"

// epoch is the earliest time representable in a zip header. Every entry uses
// it so archives do not depend on the wall clock.
var epoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Options controls archive encoding.
type Options struct {
	// Compress stores entries with Deflate instead of Store.
	Compress bool
	// Level is the flate level used when Compress is set.
	// Zero selects flate.DefaultCompression.
	Level int
}

// Encode writes set to w as an NPZ archive, entries in insertion order.
func Encode(w io.Writer, set *tensor.Set, opts Options) error {
	zw := zip.NewWriter(w)

	method := zip.Store
	if opts.Compress {
		method = zip.Deflate
		level := opts.Level
		if level == 0 {
			level = flate.DefaultCompression
		}
		if level < flate.HuffmanOnly || level > flate.BestCompression {
			return fmt.Errorf("npz: invalid compression level %d", opts.Level)
		}
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}

	for _, key := range set.Keys() {
		a, _ := set.Get(key)
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     key + EntrySuffix,
			Method:   method,
			Modified: epoch,
		})
		if err != nil {
			return fmt.Errorf("npz: failed to create entry %q: %w", key, err)
		}
		if err := npy.Encode(entry, a); err != nil {
			return fmt.Errorf("npz: entry %q: %w", key, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("npz: failed to finish archive: %w", err)
	}
	return nil
}

// WriteFile encodes set to path through a temporary file and rename.
func WriteFile(path string, set *tensor.Set, opts Options) error {
	return fsutil.WriteFile(path, func(w io.Writer) error {
		return Encode(w, set, opts)
	})
}
