package bundle

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/parity/internal/npy"
	"github.com/born-ml/parity/internal/tensor"
)

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip the data section digest (entry hashes are still checked)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// Reader gives random access to the entries of a bundle.
type Reader struct {
	r          io.ReaderAt
	file       *os.File // nil when built with NewReader
	index      Index
	flags      uint32
	dataOffset int64
	dataSize   int64
	entries    map[string]int
}

// NewReader parses and validates the bundle held by r with default options
// (strict validation, checksum verified).
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	return NewReaderWithOptions(r, size, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewReaderWithOptions parses the bundle held by r.
func NewReaderWithOptions(r io.ReaderAt, size int64, opts ReaderOptions) (*Reader, error) {
	rd := &Reader{r: r}

	fixed := make([]byte, FixedHeaderSize)
	if _, err := r.ReadAt(fixed, 0); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	rd.flags = binary.LittleEndian.Uint32(fixed[8:12])
	indexSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if indexSize > MaxIndexSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrIndexTooLarge, indexSize)
	}
	rd.dataOffset = dataOffset(int64(indexSize))
	if dataSize > uint64(size) || rd.dataOffset+int64(dataSize) != size {
		return nil, fmt.Errorf("%w: header claims %d data bytes at offset %d, file has %d bytes",
			ErrSizeMismatch, dataSize, rd.dataOffset, size)
	}
	rd.dataSize = int64(dataSize)

	indexJSON := make([]byte, indexSize)
	if _, err := r.ReadAt(indexJSON, FixedHeaderSize); err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if err := json.Unmarshal(indexJSON, &rd.index); err != nil {
		return nil, fmt.Errorf("failed to parse index JSON: %w", err)
	}

	if err := ValidateIndex(&rd.index, rd.dataSize, opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !opts.SkipChecksumValidation {
		computed, err := ComputeChecksumReader(io.NewSectionReader(r, rd.dataOffset, rd.dataSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read data for checksum: %w", err)
		}
		if err := ValidateChecksum(computed, stored); err != nil {
			return nil, err
		}
	}

	rd.entries = make(map[string]int, len(rd.index.Entries))
	for i, e := range rd.index.Entries {
		rd.entries[e.Name] = i
	}
	return rd, nil
}

// Open opens the bundle at path with default options.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// OpenWithOptions opens the bundle at path. Close releases the file.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: reading user-supplied artifact paths is the purpose
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	rd, err := NewReaderWithOptions(file, info.Size(), opts)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rd.file = file
	return rd, nil
}

// Index returns the parsed index.
func (r *Reader) Index() Index {
	return r.index
}

// Metadata returns the custom metadata stored in the index.
func (r *Reader) Metadata() map[string]string {
	return r.index.Metadata
}

// Compressed reports whether any entry is stored compressed.
func (r *Reader) Compressed() bool {
	return r.flags&FlagCompressed != 0
}

// Keys returns the entry names in index order.
func (r *Reader) Keys() []string {
	keys := make([]string, len(r.index.Entries))
	for i, e := range r.index.Entries {
		keys[i] = e.Name
	}
	return keys
}

// Has reports whether the bundle holds name.
func (r *Reader) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Blob returns the verified, uncompressed NPY blob of name.
func (r *Reader) Blob(name string) ([]byte, error) {
	i, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("bundle: no entry %q", name)
	}
	e := r.index.Entries[i]

	stored := make([]byte, e.Size)
	if _, err := r.r.ReadAt(stored, r.dataOffset+e.Offset); err != nil {
		return nil, fmt.Errorf("failed to read entry %q: %w", name, err)
	}
	method, err := ParseCompression(e.Compression)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", name, err)
	}
	blob, err := decompress(stored, method, int(e.RawSize))
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", name, err)
	}
	if HashEntry(blob) != e.Hash {
		return nil, &ValidationError{
			Type:    "hash_mismatch",
			Entry:   name,
			Details: "stored hash does not match entry content",
			Err:     ErrHashMismatch,
		}
	}
	return blob, nil
}

// Array decodes the entry stored under name.
func (r *Reader) Array(name string) (*tensor.Array, error) {
	blob, err := r.Blob(name)
	if err != nil {
		return nil, err
	}
	a, err := npy.Unmarshal(blob)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", name, err)
	}
	return a, nil
}

// Set decodes every entry into a Set in index order.
func (r *Reader) Set() (*tensor.Set, error) {
	set := tensor.NewSet()
	for _, e := range r.index.Entries {
		a, err := r.Array(e.Name)
		if err != nil {
			return nil, err
		}
		if err := set.Add(e.Name, a); err != nil {
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

// ReadFile decodes the bundle at path.
func ReadFile(path string) (*tensor.Set, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	set, err := r.Set()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
