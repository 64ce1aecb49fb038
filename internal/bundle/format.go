package bundle

// Format constants.
const (
	MagicBytes      = "PBND"
	FormatVersion   = 1
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	IndexAlignment  = 64   // Data section starts on this boundary
	ChecksumSize    = 32   // BLAKE3-256 digest size
	ChecksumOffset  = 0x20 // Checksum offset in fixed header
)

// Flags for the .pbnd format.
const (
	FlagCompressed  uint32 = 1 << 0 // bit 0: at least one entry is compressed
	FlagHasMetadata uint32 = 1 << 1 // bit 1: custom metadata included
)

// Index is the JSON index stored after the fixed header.
type Index struct {
	FormatVersion int               `json:"format_version"`
	CreatedBy     string            `json:"created_by"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Entries       []Entry           `json:"entries"`
}

// Entry describes one array payload in the data section.
type Entry struct {
	Name        string `json:"name"`        // Array key
	Offset      int64  `json:"offset"`      // Bytes from start of the data section
	Size        int64  `json:"size"`        // Stored (possibly compressed) size
	RawSize     int64  `json:"raw_size"`    // Size of the NPY blob
	Compression string `json:"compression"` // none, lz4, zstd, bg4_lz4
	Hash        string `json:"hash"`        // Hex keyed BLAKE3 of the NPY blob
}

// dataOffset returns where the data section starts for an index of the given size.
func dataOffset(indexSize int64) int64 {
	pos := int64(FixedHeaderSize) + indexSize
	return pos + (IndexAlignment-pos%IndexAlignment)%IndexAlignment
}
