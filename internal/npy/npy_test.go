package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/parity/internal/tensor"
)

func TestRoundTripAllTypes(t *testing.T) {
	half, err := tensor.FromFloat16s(tensor.Shape{2, 2}, []float32{1, -0.5, 65504, 0})
	require.NoError(t, err)

	tests := []struct {
		name  string
		array *tensor.Array
		descr string
	}{
		{"float16", half, "<f2"},
		{"float32", tensor.MustFromSlice(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6}), "<f4"},
		{"float64", tensor.MustFromSlice(tensor.Shape{3}, []float64{math.Pi, math.Inf(-1), math.NaN()}), "<f8"},
		{"int8", tensor.MustFromSlice(tensor.Shape{2}, []int8{-128, 127}), "|i1"},
		{"int16", tensor.MustFromSlice(tensor.Shape{2}, []int16{-1, 300}), "<i2"},
		{"int32", tensor.MustFromSlice(tensor.Shape{1, 1, 2}, []int32{-7, 7}), "<i4"},
		{"int64", tensor.MustFromSlice(tensor.Shape{1}, []int64{math.MinInt64}), "<i8"},
		{"uint8", tensor.MustFromSlice(tensor.Shape{4}, []uint8{0, 1, 254, 255}), "|u1"},
		{"uint16", tensor.MustFromSlice(tensor.Shape{1}, []uint16{65535}), "<u2"},
		{"uint32", tensor.MustFromSlice(tensor.Shape{1}, []uint32{1 << 31}), "<u4"},
		{"uint64", tensor.MustFromSlice(tensor.Shape{1}, []uint64{math.MaxUint64}), "<u8"},
		{"bool", tensor.MustFromSlice(tensor.Shape{3}, []bool{true, false, true}), "|b1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.array)
			require.NoError(t, err)
			assert.Contains(t, string(data), "'descr': '"+tt.descr+"'")

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.True(t, tt.array.Equal(got), "round trip changed %s", tt.array)
		})
	}
}

func TestNaNBitsPreserved(t *testing.T) {
	// A signalling NaN with a payload must survive untouched.
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, 0x7fa00001)
	a, err := tensor.NewArray(tensor.Float32, tensor.Shape{1}, raw)
	require.NoError(t, err)

	data, err := Marshal(a)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, raw, got.Bytes())
}

func TestHeaderLayout(t *testing.T) {
	tests := []struct {
		name  string
		shape tensor.Shape
		want  string
	}{
		{"matrix", tensor.Shape{2, 3}, "{'descr': '<f4', 'fortran_order': False, 'shape': (2, 3), }"},
		{"vector", tensor.Shape{3}, "{'descr': '<f4', 'fortran_order': False, 'shape': (3,), }"},
		{"scalar", tensor.Shape{}, "{'descr': '<f4', 'fortran_order': False, 'shape': (), }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := tensor.Wrap(tensor.Float32, tt.shape, make([]byte, 4*tt.shape.NumElements()), false)
			require.NoError(t, err)
			data, err := Marshal(a)
			require.NoError(t, err)

			assert.Equal(t, Magic, string(data[:6]))
			assert.Equal(t, []byte{1, 0}, data[6:8])
			headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
			offset := 10 + headerLen
			assert.Zero(t, offset%Alignment, "data offset %d not aligned", offset)
			assert.Equal(t, byte('\n'), data[offset-1])

			text := string(data[10:offset])
			assert.True(t, strings.HasPrefix(text, tt.want), "header %q", text)
			assert.Equal(t, tt.want, strings.TrimRight(text, " \n"))
			assert.Len(t, data, offset+len(a.Bytes()))
		})
	}
}

func TestScalarAndEmpty(t *testing.T) {
	scalar := tensor.MustFromSlice(tensor.Shape{}, []float64{42})
	data, err := Marshal(scalar)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, got.Shape())
	assert.Equal(t, 1, got.NumElements())
	assert.Equal(t, 42.0, got.Float64At(0))

	empty, err := tensor.Wrap(tensor.Float32, tensor.Shape{0, 3}, nil, false)
	require.NoError(t, err)
	data, err = Marshal(empty)
	require.NoError(t, err)
	got, err = Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, got.Shape().Equal(tensor.Shape{0, 3}))
	assert.Equal(t, 0, got.NumElements())
}

func TestFortranOrder(t *testing.T) {
	values := tensor.MustFromSlice(tensor.Shape{6}, []int32{1, 4, 2, 5, 3, 6})
	f, err := tensor.Wrap(tensor.Int32, tensor.Shape{2, 3}, values.Bytes(), true)
	require.NoError(t, err)

	data, err := Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), "'fortran_order': True")

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, got.FortranOrder())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got.RowMajor().Float64s())
}

func TestDeterministic(t *testing.T) {
	a := tensor.MustFromSlice(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	first, err := Marshal(a)
	require.NoError(t, err)
	second, err := Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// rawBlob builds an NPY v1.0 blob with an arbitrary header and payload.
func rawBlob(dict string, payload []byte) []byte {
	text := padHeader(dict, 2)
	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(text)))
	buf.WriteString(text)
	buf.Write(payload)
	return buf.Bytes()
}

func TestDecodeErrors(t *testing.T) {
	good := rawBlob("{'descr': '<f4', 'fortran_order': False, 'shape': (2,), }", make([]byte, 8))

	badVersion := append([]byte(nil), good...)
	badVersion[6] = 4

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"bad magic", append([]byte("\x93NUMPZ"), good[6:]...), ErrInvalidMagic},
		{"truncated magic", []byte("\x93NU"), ErrInvalidMagic},
		{"bad version", badVersion, ErrUnsupportedVersion},
		{"short payload", good[:len(good)-1], ErrSizeMismatch},
		{"trailing bytes", append(append([]byte(nil), good...), 0), ErrSizeMismatch},
		{"big endian", rawBlob("{'descr': '>f4', 'fortran_order': False, 'shape': (2,), }", make([]byte, 8)), ErrUnsupportedDType},
		{"unknown descr", rawBlob("{'descr': '<c8', 'fortran_order': False, 'shape': (1,), }", make([]byte, 8)), ErrUnsupportedDType},
		{"negative dim", rawBlob("{'descr': '<f4', 'fortran_order': False, 'shape': (-1,), }", nil), ErrInvalidHeader},
		{"missing shape", rawBlob("{'descr': '<f4', 'fortran_order': False, }", nil), ErrInvalidHeader},
		{"not a dict", rawBlob("descr=<f4", nil), ErrInvalidHeader},
		{"bad dimension", rawBlob("{'descr': '<f4', 'fortran_order': False, 'shape': (2, x), }", nil), ErrInvalidHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			require.Error(t, err)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "want *FormatError, got %T: %v", err, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeAcceptsForeignHeaders(t *testing.T) {
	tests := []struct {
		name string
		dict string
		want tensor.DataType
	}{
		{"native prefix", "{'descr': '=i4', 'fortran_order': False, 'shape': (2,)}", tensor.Int32},
		{"no prefix code", "{'shape': (2,), 'descr': 'f', 'fortran_order': False}", tensor.Float32},
		{"big endian single byte", "{'descr': '>u1', 'fortran_order': False, 'shape': (8,), }", tensor.Uint8},
		{"python2 long", "{'descr': '<f8', 'fortran_order': False, 'shape': (1L,), }", tensor.Float64},
		{"double quotes", `{"descr": "<i2", "fortran_order": False, "shape": (4,), }`, tensor.Int16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Unmarshal(rawBlob(tt.dict, make([]byte, 8)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.DType())
		})
	}
}

func TestDecodeVersion2(t *testing.T) {
	text := padHeader("{'descr': '<i8', 'fortran_order': False, 'shape': (1,), }", 4)
	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.Write([]byte{2, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(text)))
	buf.WriteString(text)
	_ = binary.Write(&buf, binary.LittleEndian, int64(-3))

	a, err := Unmarshal(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, -3.0, a.Float64At(0))
}

func TestDecodeStreamStopsAtPayload(t *testing.T) {
	a := tensor.MustFromSlice(tensor.Shape{2}, []uint16{1, 2})
	b := tensor.MustFromSlice(tensor.Shape{1}, []float32{3})

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, a))
	require.NoError(t, Encode(&buf, b))

	first, err := Decode(&buf)
	require.NoError(t, err)
	second, err := Decode(&buf)
	require.NoError(t, err)
	assert.True(t, a.Equal(first))
	assert.True(t, b.Equal(second))
}

func TestHugeHeaderRejected(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.Write([]byte{2, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint32(MaxHeaderSize+1))
	_, err := Unmarshal(buf.Bytes())
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.npy")
	a := tensor.MustFromSlice(tensor.Shape{2, 2}, []float64{1, 2, 3, 4})
	require.NoError(t, WriteFile(path, a))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.True(t, a.Equal(got))

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	_, err = ReadFile(path)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}
