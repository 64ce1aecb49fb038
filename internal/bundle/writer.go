package bundle

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/born-ml/parity/internal/fsutil"
	"github.com/born-ml/parity/internal/npy"
	"github.com/born-ml/parity/internal/tensor"
)

// DefaultCreatedBy is written to the index when WriterOptions leaves it empty.
const DefaultCreatedBy = "parity"

// WriterOptions configures bundle encoding.
type WriterOptions struct {
	Compression Compression       // Applied to every entry; CompressionAuto picks per entry
	CreatedBy   string            // Producer name stored in the index
	Metadata    map[string]string // Custom metadata
}

// Encode writes set to w as a bundle. Entries keep the set's insertion order
// and the index holds no timestamps, so the output is deterministic.
func Encode(w io.Writer, set *tensor.Set, opts WriterOptions) error {
	idx := Index{
		FormatVersion: FormatVersion,
		CreatedBy:     opts.CreatedBy,
		Metadata:      opts.Metadata,
		Entries:       make([]Entry, 0, set.Len()),
	}
	if idx.CreatedBy == "" {
		idx.CreatedBy = DefaultCreatedBy
	}

	var flags uint32
	if len(opts.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	var data bytes.Buffer
	for _, name := range set.Keys() {
		if err := ValidateEntryName(name); err != nil {
			return err
		}
		a, _ := set.Get(name)
		blob, err := npy.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", name, err)
		}

		method := opts.Compression
		if method == CompressionAuto {
			method = selectCompression(a, blob)
		}
		stored, err := compress(blob, method)
		if errors.Is(err, errIncompressible) {
			method, stored = CompressionNone, blob
		} else if err != nil {
			return fmt.Errorf("failed to compress %q: %w", name, err)
		}
		if method != CompressionNone {
			flags |= FlagCompressed
		}

		idx.Entries = append(idx.Entries, Entry{
			Name:        name,
			Offset:      int64(data.Len()),
			Size:        int64(len(stored)),
			RawSize:     int64(len(blob)),
			Compression: method.String(),
			Hash:        HashEntry(blob),
		})
		data.Write(stored)
	}

	indexJSON, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if len(indexJSON) > MaxIndexSize {
		return fmt.Errorf("%w: %d bytes", ErrIndexTooLarge, len(indexJSON))
	}

	// Fixed header: magic, version, flags, reserved, index size, data size, checksum.
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(indexJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	checksum := ComputeChecksum(data.Bytes())
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(indexJSON); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	pad := dataOffset(int64(len(indexJSON))) - int64(FixedHeaderSize+len(indexJSON))
	if _, err := w.Write(make([]byte, pad)); err != nil {
		return fmt.Errorf("failed to write padding: %w", err)
	}
	if _, err := data.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// WriteFile encodes set to path through a temporary file and rename.
func WriteFile(path string, set *tensor.Set, opts WriterOptions) error {
	return fsutil.WriteFile(path, func(w io.Writer) error {
		return Encode(w, set, opts)
	})
}
