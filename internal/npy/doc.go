// Package npy implements the NumPy .npy single-array format.
//
// A blob is laid out as:
//
//	\x93NUMPY | major | minor | header length (u16 LE for 1.0, u32 LE for 2.0/3.0)
//	{'descr': '<f4', 'fortran_order': False, 'shape': (2, 3), }   padded, ends in '\n'
//	raw little-endian element bytes
//
// Encode always pads the header so the data starts at a multiple of 64 bytes.
// Decode accepts versions 1.0 through 3.0, any padding, and both C and Fortran
// order. Big-endian descriptors are rejected. Element bytes are never
// converted; a decoded array carries the exact bit patterns that were written.
package npy
