// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public array types shared by the parity codecs,
// mapper and comparator.
//
// An Array is an immutable n-dimensional buffer of little-endian elements
// with a DataType and a Shape. A Set is an insertion-ordered collection of
// named arrays; it is what every container format reads and writes.
//
// Example:
//
//	w := tensor.MustFromSlice(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
//	set := tensor.NewSet()
//	set.MustAdd("c1_w", w)
package tensor

import (
	"github.com/born-ml/parity/internal/tensor"
)

// Element is the constraint for Go element types that map onto a DataType.
type Element = tensor.Element

// DataType represents the element type of an array.
type DataType = tensor.DataType

// Data type constants.
const (
	Float16 DataType = tensor.Float16
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int8    DataType = tensor.Int8
	Int16   DataType = tensor.Int16
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Uint16  DataType = tensor.Uint16
	Uint32  DataType = tensor.Uint32
	Uint64  DataType = tensor.Uint64
	Bool    DataType = tensor.Bool
)

// Shape represents the dimensions of an array.
// Example: Shape{2, 3, 4} is a 3D array; Shape{} is a scalar.
type Shape = tensor.Shape

// Array is an n-dimensional typed buffer.
type Array = tensor.Array

// Set is an insertion-ordered collection of named arrays.
type Set = tensor.Set

// DuplicateKeyError reports a key that appears more than once.
type DuplicateKeyError = tensor.DuplicateKeyError

// NewSet creates an empty Set.
func NewSet() *Set {
	return tensor.NewSet()
}

// Wrap creates an array over raw little-endian bytes. fortranOrder marks
// column-major storage.
func Wrap(dtype DataType, shape Shape, data []byte, fortranOrder bool) (*Array, error) {
	return tensor.Wrap(dtype, shape, data, fortranOrder)
}

// FromSlice creates an array from Go values in row-major order.
func FromSlice[T Element](shape Shape, values []T) (*Array, error) {
	return tensor.FromSlice(shape, values)
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice[T Element](shape Shape, values []T) *Array {
	return tensor.MustFromSlice(shape, values)
}

// FromFloat16s creates a float16 array, rounding each value to half precision.
func FromFloat16s(shape Shape, values []float32) (*Array, error) {
	return tensor.FromFloat16s(shape, values)
}

// ParseDataType converts a name such as "float32" to a DataType.
func ParseDataType(name string) (DataType, error) {
	return tensor.ParseDataType(name)
}
