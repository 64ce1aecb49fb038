package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/parity/internal/fsutil"
	"github.com/born-ml/parity/internal/tensor"
)

// Format constants.
const (
	Magic         = "\x93NUMPY"
	Alignment     = 64      // Data offset is a multiple of this
	MaxHeaderSize = 1 << 20 // 1 MiB limit on the header dictionary
)

// Encode writes a as a single NPY blob.
//
// Version 1.0 is used unless the header does not fit a 16-bit length, in
// which case 2.0 is written. The payload bytes are copied verbatim.
func Encode(w io.Writer, a *tensor.Array) error {
	if a == nil {
		return fmt.Errorf("npy: nil array")
	}
	dict := buildHeader(a.DType(), a.Shape(), a.FortranOrder())

	major, lenField := byte(1), 2
	text := padHeader(dict, lenField)
	if len(text) > math.MaxUint16 {
		major, lenField = 2, 4
		text = padHeader(dict, lenField)
	}

	prefix := make([]byte, 0, len(Magic)+2+lenField)
	prefix = append(prefix, Magic...)
	prefix = append(prefix, major, 0)
	if lenField == 2 {
		prefix = binary.LittleEndian.AppendUint16(prefix, uint16(len(text)))
	} else {
		prefix = binary.LittleEndian.AppendUint32(prefix, uint32(len(text)))
	}

	if _, err := w.Write(prefix); err != nil {
		return fmt.Errorf("npy: failed to write preamble: %w", err)
	}
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("npy: failed to write header: %w", err)
	}
	if _, err := w.Write(a.Bytes()); err != nil {
		return fmt.Errorf("npy: failed to write data: %w", err)
	}
	return nil
}

// padHeader appends spaces and a newline so the data offset is aligned.
func padHeader(dict string, lenField int) string {
	unpadded := len(Magic) + 2 + lenField + len(dict) + 1
	pad := (Alignment - unpadded%Alignment) % Alignment
	return dict + string(bytes.Repeat([]byte{' '}, pad)) + "\n"
}

// Marshal returns the NPY encoding of a.
func Marshal(a *tensor.Array) ([]byte, error) {
	var buf bytes.Buffer
	if a != nil {
		buf.Grow(len(a.Bytes()) + Alignment*2)
	}
	if err := Encode(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads one NPY blob from r. It consumes exactly the bytes described
// by the header and leaves r positioned after the payload.
func Decode(r io.Reader) (*tensor.Array, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	size, err := payloadSize(h)
	if err != nil {
		return nil, err
	}

	// Grow as bytes arrive instead of trusting the header with one big allocation.
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r, size))
	if err != nil {
		return nil, fmt.Errorf("npy: failed to read data: %w", err)
	}
	if n != size {
		return nil, formatErrorf(ErrSizeMismatch, "shape %v of %s needs %d bytes, got %d",
			h.shape, h.dtype, size, n)
	}

	a, err := tensor.Wrap(h.dtype, h.shape, buf.Bytes(), h.fortranOrder)
	if err != nil {
		return nil, formatErrorf(ErrInvalidHeader, "%v", err)
	}
	return a, nil
}

// Unmarshal decodes data, which must hold exactly one NPY blob.
func Unmarshal(data []byte) (*tensor.Array, error) {
	r := bytes.NewReader(data)
	a, err := Decode(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, formatErrorf(ErrSizeMismatch, "%d trailing bytes after payload", r.Len())
	}
	return a, nil
}

func readHeader(r io.Reader) (header, error) {
	var preamble [len(Magic) + 2]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return header{}, formatErrorf(ErrInvalidMagic, "short read: %v", err)
	}
	if string(preamble[:len(Magic)]) != Magic {
		return header{}, formatErrorf(ErrInvalidMagic, "got %q", preamble[:len(Magic)])
	}

	major, minor := preamble[len(Magic)], preamble[len(Magic)+1]
	var headerLen int
	switch {
	case major == 1 && minor == 0:
		var field [2]byte
		if _, err := io.ReadFull(r, field[:]); err != nil {
			return header{}, formatErrorf(ErrInvalidHeader, "short header length: %v", err)
		}
		headerLen = int(binary.LittleEndian.Uint16(field[:]))
	case (major == 2 || major == 3) && minor == 0:
		var field [4]byte
		if _, err := io.ReadFull(r, field[:]); err != nil {
			return header{}, formatErrorf(ErrInvalidHeader, "short header length: %v", err)
		}
		length := binary.LittleEndian.Uint32(field[:])
		if length > MaxHeaderSize {
			return header{}, formatErrorf(ErrHeaderTooLarge, "%d bytes (max %d)", length, MaxHeaderSize)
		}
		headerLen = int(length)
	default:
		return header{}, formatErrorf(ErrUnsupportedVersion, "%d.%d", major, minor)
	}

	text := make([]byte, headerLen)
	if _, err := io.ReadFull(r, text); err != nil {
		return header{}, formatErrorf(ErrInvalidHeader, "short header: %v", err)
	}
	return parseHeader(string(text))
}

// payloadSize computes product(shape) * itemsize, rejecting overflow.
func payloadSize(h header) (int64, error) {
	size := int64(h.dtype.Size())
	for _, d := range h.shape {
		if d != 0 && size > math.MaxInt64/int64(d) {
			return 0, formatErrorf(ErrInvalidHeader, "shape %v overflows", h.shape)
		}
		size *= int64(d)
	}
	return size, nil
}

// ReadFile decodes the NPY file at path.
func ReadFile(path string) (*tensor.Array, error) {
	//nolint:gosec // G304: reading user-supplied artifact paths is the purpose
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	a, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// WriteFile encodes a to path. The file is written to a temporary name and
// renamed, so a failed write never leaves a partial file behind.
func WriteFile(path string, a *tensor.Array) error {
	return fsutil.WriteFile(path, func(w io.Writer) error {
		return Encode(w, a)
	})
}
