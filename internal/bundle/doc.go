// Package bundle provides the .pbnd indexed array bundle.
//
// A bundle stores a named array set with per-entry compression and
// integrity checks. Every entry is an independently valid NPY blob, so a
// bundle can always be unpacked back into plain .npy files.
//
//	Format Structure:
//	  [0x00  4 bytes: Magic "PBND"]
//	  [0x04  4 bytes: Version (uint32 LE)]
//	  [0x08  4 bytes: Flags (uint32 LE)]
//	  [0x0C  4 bytes: Reserved]
//	  [0x10  8 bytes: Index size (uint64 LE)]
//	  [0x18  8 bytes: Data size (uint64 LE)]
//	  [0x20 32 bytes: BLAKE3 digest of the data section]
//	  [Index: JSON, padded to a 64-byte boundary]
//	  [Data: entry payloads]
//
// Entry payloads are compressed with none, lz4, zstd, or bg4_lz4. The index
// records each entry's keyed BLAKE3 hash of the uncompressed NPY blob, which
// is checked whenever the entry is decoded.
//
// Example usage:
//
//	if err := bundle.WriteFile("acts.pbnd", set, bundle.WriterOptions{
//	    Compression: bundle.CompressionAuto,
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
//	r, err := bundle.Open("acts.pbnd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	conv1, err := r.Array("10_conv1_out")
package bundle
