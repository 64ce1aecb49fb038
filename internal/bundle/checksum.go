package bundle

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// entryDomainKey separates entry hashes from any other BLAKE3 use of the
// same bytes. ASCII name zero-padded to 32 bytes.
var entryDomainKey = [32]byte{
	'p', 'a', 'r', 'i', 't', 'y', '.', 'b', 'u', 'n', 'd', 'l', 'e', '.',
	'e', 'n', 't', 'r', 'y',
}

// ComputeChecksum computes the BLAKE3-256 digest of data.
func ComputeChecksum(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// ComputeChecksumReader computes the BLAKE3-256 digest from an io.Reader
// without loading it into memory.
func ComputeChecksumReader(r io.Reader) ([32]byte, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// HashEntry returns the hex keyed BLAKE3 hash of an uncompressed NPY blob.
func HashEntry(blob []byte) string {
	hasher, err := blake3.NewKeyed(entryDomainKey[:])
	if err != nil {
		// Only returned for a key that is not 32 bytes.
		panic("bundle: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(blob)
	return hex.EncodeToString(hasher.Sum(nil))
}
