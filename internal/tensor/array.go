package tensor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Array is an immutable typed n-dimensional array backed by a contiguous
// little-endian byte buffer.
//
// The buffer holds NumElements(shape) * dtype.Size() bytes in row-major order
// unless FortranOrder reports true, in which case the first dimension varies
// fastest.
type Array struct {
	dtype        DataType
	shape        Shape
	data         []byte
	fortranOrder bool
}

// NewArray creates a row-major array from a copy of data.
func NewArray(dtype DataType, shape Shape, data []byte) (*Array, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	return Wrap(dtype, shape, buf, false)
}

// Wrap creates an array that takes ownership of data without copying.
// The caller must not modify data afterwards.
func Wrap(dtype DataType, shape Shape, data []byte, fortranOrder bool) (*Array, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("invalid data type %d", int(dtype))
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want := shape.NumElements() * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("buffer length %d does not match shape %v of %s (want %d bytes)",
			len(data), shape, dtype, want)
	}
	return &Array{
		dtype:        dtype,
		shape:        shape.Clone(),
		data:         data,
		fortranOrder: fortranOrder && len(shape) > 1,
	}, nil
}

// FromSlice creates a row-major array holding values with the given shape.
func FromSlice[T Element](shape Shape, values []T) (*Array, error) {
	dtype := DataTypeOf[T]()
	if shape.Validate() == nil && shape.NumElements() != len(values) {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, shape.NumElements(), len(values))
	}
	size := dtype.Size()
	data := make([]byte, len(values)*size)
	for i, v := range values {
		putElement(dtype, data[i*size:], any(v))
	}
	return Wrap(dtype, shape, data, false)
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice[T Element](shape Shape, values []T) *Array {
	a, err := FromSlice(shape, values)
	if err != nil {
		panic(err)
	}
	return a
}

// FromFloat16s creates a float16 array from float32 values, rounding to nearest.
func FromFloat16s(shape Shape, values []float32) (*Array, error) {
	data := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v).Bits())
	}
	return Wrap(Float16, shape, data, false)
}

func putElement(dtype DataType, dst []byte, v any) {
	switch dtype {
	case Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v.(float32)))
	case Float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.(float64)))
	case Int8:
		dst[0] = byte(v.(int8))
	case Int16:
		binary.LittleEndian.PutUint16(dst, uint16(v.(int16)))
	case Int32:
		binary.LittleEndian.PutUint32(dst, uint32(v.(int32)))
	case Int64:
		binary.LittleEndian.PutUint64(dst, uint64(v.(int64)))
	case Uint8:
		dst[0] = v.(uint8)
	case Uint16:
		binary.LittleEndian.PutUint16(dst, v.(uint16))
	case Uint32:
		binary.LittleEndian.PutUint32(dst, v.(uint32))
	case Uint64:
		binary.LittleEndian.PutUint64(dst, v.(uint64))
	case Bool:
		if v.(bool) {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	}
}

// DType returns the array's data type.
func (a *Array) DType() DataType {
	return a.dtype
}

// Shape returns a copy of the array's shape.
func (a *Array) Shape() Shape {
	return a.shape.Clone()
}

// NumElements returns the number of elements.
func (a *Array) NumElements() int {
	return a.shape.NumElements()
}

// FortranOrder reports whether the buffer is column-major.
func (a *Array) FortranOrder() bool {
	return a.fortranOrder
}

// Bytes returns the raw little-endian buffer. The slice is shared with the
// array and must be treated as read-only.
func (a *Array) Bytes() []byte {
	return a.data
}

// Float64At decodes the i-th element of the buffer (in storage order) as float64.
// Integers beyond 2^53 lose precision.
func (a *Array) Float64At(i int) float64 {
	off := i * a.dtype.Size()
	b := a.data[off:]
	switch a.dtype {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case Float16:
		return float64(float16.Frombits(binary.LittleEndian.Uint16(b)).Float32())
	case Int8:
		return float64(int8(b[0]))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case Uint8:
		return float64(b[0])
	case Uint16:
		return float64(binary.LittleEndian.Uint16(b))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(b))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(b))
	case Bool:
		if b[0] != 0 {
			return 1
		}
		return 0
	default:
		panic("unknown data type")
	}
}

// Float64s returns all elements widened to float64, in storage order.
func (a *Array) Float64s() []float64 {
	n := a.NumElements()
	out := make([]float64, n)
	for i := range out {
		out[i] = a.Float64At(i)
	}
	return out
}

// Equal reports whether both arrays have the same dtype, shape, memory order,
// and byte-identical buffers.
func (a *Array) Equal(other *Array) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.dtype == other.dtype &&
		a.fortranOrder == other.fortranOrder &&
		a.shape.Equal(other.shape) &&
		bytes.Equal(a.data, other.data)
}

// RowMajor returns the array in row-major order. Row-major arrays are
// returned as is; column-major arrays are copied into a new buffer.
func (a *Array) RowMajor() *Array {
	if !a.fortranOrder {
		return a
	}
	size := a.dtype.Size()
	n := a.NumElements()
	out := make([]byte, len(a.data))
	strides := a.shape.ComputeStrides()

	// Walk the source in storage order; the first dimension varies fastest.
	index := make([]int, len(a.shape))
	for src := 0; src < n; src++ {
		dst := 0
		for k, idx := range index {
			dst += idx * strides[k]
		}
		copy(out[dst*size:(dst+1)*size], a.data[src*size:(src+1)*size])

		for k := range index {
			index[k]++
			if index[k] < a.shape[k] {
				break
			}
			index[k] = 0
		}
	}
	return &Array{dtype: a.dtype, shape: a.shape.Clone(), data: out}
}

// Cast converts the array's elements to dtype. Integer to integer casts
// wrap like a C conversion; float to integer casts truncate toward zero.
func (a *Array) Cast(dtype DataType) (*Array, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("invalid data type %d", int(dtype))
	}
	if dtype == a.dtype {
		return a, nil
	}
	n := a.NumElements()
	size := dtype.Size()
	out := make([]byte, n*size)
	intSource := !a.dtype.IsFloat()
	for i := 0; i < n; i++ {
		dst := out[i*size:]
		if intSource && !dtype.IsFloat() {
			putInt(dtype, dst, a.int64At(i))
			continue
		}
		putFloat(dtype, dst, a.Float64At(i))
	}
	return Wrap(dtype, a.shape, out, a.fortranOrder)
}

func (a *Array) int64At(i int) int64 {
	off := i * a.dtype.Size()
	b := a.data[off:]
	switch a.dtype {
	case Int64:
		return int64(binary.LittleEndian.Uint64(b))
	case Uint64:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		return int64(a.Float64At(i))
	}
}

func putInt(dtype DataType, dst []byte, v int64) {
	switch dtype {
	case Int8:
		dst[0] = byte(int8(v))
	case Int16:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case Int32:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case Int64, Uint64:
		binary.LittleEndian.PutUint64(dst, uint64(v))
	case Uint8:
		dst[0] = byte(v)
	case Uint16:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case Uint32:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case Bool:
		if v != 0 {
			dst[0] = 1
		}
	}
}

func putFloat(dtype DataType, dst []byte, v float64) {
	switch dtype {
	case Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	case Float16:
		binary.LittleEndian.PutUint16(dst, float16.Fromfloat32(float32(v)).Bits())
	case Bool:
		if v != 0 {
			dst[0] = 1
		}
	default:
		putInt(dtype, dst, int64(v))
	}
}

// String returns a short description such as "float32(2, 3)".
func (a *Array) String() string {
	order := ""
	if a.fortranOrder {
		order = " F"
	}
	return a.dtype.String() + a.shape.String() + order
}
