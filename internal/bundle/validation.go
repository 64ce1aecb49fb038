package bundle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/parity/internal/tensor"
)

// Validation limits for resource protection.
const (
	MaxIndexSize    = 64 * 1024 * 1024 // 64MB - maximum index size
	MaxEntryCount   = 100_000          // Maximum number of entries in a file
	MaxEntryNameLen = 4096             // Maximum entry name length
	MaxEntryRawSize = 8 << 30          // 8GB - maximum uncompressed entry size
)

// maxLZ4Ratio bounds raw_size/size for LZ4 blocks, which cannot expand a
// byte into more than 255 output bytes.
const maxLZ4Ratio = 255

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and duplicates but not offsets.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateEntryOffsets checks for negative, overlapping, and out-of-bounds entries.
func ValidateEntryOffsets(entries []Entry, dataSize int64) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, e := range sorted {
		if e.Offset < 0 || e.Size < 0 || e.RawSize < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Entry:   e.Name,
				Details: fmt.Sprintf("offset=%d, size=%d, raw_size=%d", e.Offset, e.Size, e.RawSize),
				Err:     ErrOutOfBounds,
			}
		}
		if e.Offset+e.Size > dataSize || e.Offset+e.Size < e.Offset {
			return &ValidationError{
				Type:    "out_of_bounds",
				Entry:   e.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", e.Offset, e.Size, dataSize),
				Err:     ErrOutOfBounds,
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if e.Offset+e.Size > next.Offset {
				return &ValidationError{
					Type:   "offset_overlap",
					Entry:  e.Name,
					Entry2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						e.Offset, e.Offset+e.Size, next.Offset, next.Offset+next.Size),
					Err: ErrOffsetOverlap,
				}
			}
		}
	}
	return nil
}

// ValidateEntryName rejects names that cannot round-trip through a
// directory of .npy files.
func ValidateEntryName(name string) error {
	invalid := func(details string) error {
		return &ValidationError{Type: "invalid_name", Entry: name, Details: details, Err: ErrInvalidEntryName}
	}
	switch {
	case name == "":
		return invalid("empty name")
	case len(name) > MaxEntryNameLen:
		return invalid(fmt.Sprintf("length %d > max %d", len(name), MaxEntryNameLen))
	case strings.Contains(name, ".."):
		return invalid("contains '..'")
	case strings.HasPrefix(name, "/") || strings.Contains(name, "\\"):
		return invalid("absolute path or backslash")
	case strings.Contains(name, "\x00"):
		return invalid("contains null byte")
	}
	return nil
}

// ValidateIndex checks the index against the data section size.
func ValidateIndex(idx *Index, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if len(idx.Entries) > MaxEntryCount {
		return &ValidationError{
			Type:    "too_many_entries",
			Details: fmt.Sprintf("got %d, max %d", len(idx.Entries), MaxEntryCount),
			Err:     ErrTooManyEntries,
		}
	}

	seen := make(map[string]struct{}, len(idx.Entries))
	for _, e := range idx.Entries {
		if err := ValidateEntryName(e.Name); err != nil {
			return err
		}
		if _, dup := seen[e.Name]; dup {
			return &tensor.DuplicateKeyError{Key: e.Name}
		}
		seen[e.Name] = struct{}{}

		c, err := ParseCompression(e.Compression)
		if err != nil || c == CompressionAuto {
			return &ValidationError{Type: "invalid_compression", Entry: e.Name, Details: fmt.Sprintf("%q", e.Compression)}
		}
		if err := validateRawSize(e, c); err != nil {
			return err
		}
	}

	if level == ValidationStrict {
		return ValidateEntryOffsets(idx.Entries, dataSize)
	}
	return nil
}

// validateRawSize checks that an entry's raw size is plausible for its
// stored size and compression.
func validateRawSize(e Entry, c Compression) error {
	tooLarge := func(details string) error {
		return &ValidationError{Type: "entry_too_large", Entry: e.Name, Details: details, Err: ErrEntryTooLarge}
	}
	switch {
	case e.RawSize < 0:
		return &ValidationError{
			Type:    "out_of_bounds",
			Entry:   e.Name,
			Details: fmt.Sprintf("negative raw size %d", e.RawSize),
			Err:     ErrOutOfBounds,
		}
	case e.RawSize > MaxEntryRawSize:
		return tooLarge(fmt.Sprintf("raw size %d > max %d", e.RawSize, int64(MaxEntryRawSize)))
	}

	switch c {
	case CompressionNone:
		if e.RawSize != e.Size {
			return &ValidationError{
				Type:    "raw_size_mismatch",
				Entry:   e.Name,
				Details: fmt.Sprintf("uncompressed entry has size %d but raw size %d", e.Size, e.RawSize),
				Err:     ErrRawSizeMismatch,
			}
		}
	case CompressionLZ4, CompressionBG4LZ4:
		if e.RawSize > e.Size*maxLZ4Ratio {
			return tooLarge(fmt.Sprintf("raw size %d exceeds %dx stored size %d", e.RawSize, maxLZ4Ratio, e.Size))
		}
	}
	return nil
}
