package loader

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/parity/internal/fsutil"
	"github.com/born-ml/parity/internal/tensor"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// MaxSafeTensorsHeaderSize bounds the JSON header read from a file.
const MaxSafeTensorsHeaderSize = 100 * 1024 * 1024

// SafeTensorsDType represents supported SafeTensors data types.
type SafeTensorsDType string

// Supported SafeTensors dtypes.
const (
	SafeTensorsF16  SafeTensorsDType = "F16"
	SafeTensorsBF16 SafeTensorsDType = "BF16"
	SafeTensorsF32  SafeTensorsDType = "F32"
	SafeTensorsF64  SafeTensorsDType = "F64"
	SafeTensorsI8   SafeTensorsDType = "I8"
	SafeTensorsI16  SafeTensorsDType = "I16"
	SafeTensorsI32  SafeTensorsDType = "I32"
	SafeTensorsI64  SafeTensorsDType = "I64"
	SafeTensorsU8   SafeTensorsDType = "U8"
	SafeTensorsU16  SafeTensorsDType = "U16"
	SafeTensorsU32  SafeTensorsDType = "U32"
	SafeTensorsU64  SafeTensorsDType = "U64"
	SafeTensorsBool SafeTensorsDType = "BOOL"
)

// SafeTensorInfo describes a tensor in SafeTensors format.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end] relative to the data section
}

// SafeTensorsHeader is the JSON header in SafeTensors format.
type SafeTensorsHeader struct {
	Metadata map[string]string         `json:"__metadata__"`
	Tensors  map[string]SafeTensorInfo `json:"-"`
}

// UnmarshalJSON implements custom JSON unmarshaling for SafeTensorsHeader.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	// Everything except __metadata__ is a tensor.
	h.Tensors = make(map[string]SafeTensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// SafeTensorsReader reads SafeTensors format files.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	names      []string // In data offset order
	dataOffset int64    // Offset where tensor data starts
	dataSize   int64
}

// NewSafeTensorsReader opens path and parses its header. Tensor payloads are
// read on demand.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoint loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r, err := newSafeTensorsReader(file)
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func newSafeTensorsReader(file *os.File) (*SafeTensorsReader, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxSafeTensorsHeaderSize || int64(headerSize) > stat.Size()-8 { //nolint:gosec // bounded above
		return nil, fmt.Errorf("invalid header size: %d", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r := &SafeTensorsReader{
		file:       file,
		header:     header,
		dataOffset: int64(8 + headerSize), //nolint:gosec // G115: bounded by file size
	}
	r.dataSize = stat.Size() - r.dataOffset

	for name, info := range header.Tensors {
		if err := r.validateInfo(name, info); err != nil {
			return nil, err
		}
		r.names = append(r.names, name)
	}
	// File order; the JSON object itself has no reliable order.
	sort.Slice(r.names, func(i, j int) bool {
		a, b := header.Tensors[r.names[i]], header.Tensors[r.names[j]]
		if a.DataOffsets[0] != b.DataOffsets[0] {
			return a.DataOffsets[0] < b.DataOffsets[0]
		}
		return r.names[i] < r.names[j]
	})
	return r, nil
}

func (r *SafeTensorsReader) validateInfo(name string, info SafeTensorInfo) error {
	shape := tensor.Shape(info.Shape)
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}
	itemSize, err := safeTensorsItemSize(info.DType)
	if err != nil {
		return fmt.Errorf("tensor %s: %w", name, err)
	}
	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start || end > r.dataSize {
		return fmt.Errorf("invalid data offsets for tensor %s: [%d, %d]", name, start, end)
	}
	if want := int64(shape.NumElements()) * int64(itemSize); end-start != want {
		return fmt.Errorf("tensor %s: data size %d does not match shape %s of %s (%d bytes)",
			name, end-start, shape, info.DType, want)
	}
	return nil
}

// Close closes the SafeTensors file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the metadata map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in data offset order.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// ReadTensorData reads raw tensor data for a given tensor name.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := r.file.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

func safeTensorsItemSize(dtype SafeTensorsDType) (int, error) {
	if dtype == SafeTensorsBF16 {
		return 2, nil
	}
	dt, err := safeTensorsDTypeToDataType(dtype)
	if err != nil {
		return 0, err
	}
	return dt.Size(), nil
}

// safeTensorsDTypeToDataType converts a SafeTensors dtype to a DataType.
// BF16 has no direct counterpart; LoadArray widens it to float32.
func safeTensorsDTypeToDataType(dtype SafeTensorsDType) (tensor.DataType, error) {
	switch dtype {
	case SafeTensorsF16:
		return tensor.Float16, nil
	case SafeTensorsF32:
		return tensor.Float32, nil
	case SafeTensorsF64:
		return tensor.Float64, nil
	case SafeTensorsI8:
		return tensor.Int8, nil
	case SafeTensorsI16:
		return tensor.Int16, nil
	case SafeTensorsI32:
		return tensor.Int32, nil
	case SafeTensorsI64:
		return tensor.Int64, nil
	case SafeTensorsU8:
		return tensor.Uint8, nil
	case SafeTensorsU16:
		return tensor.Uint16, nil
	case SafeTensorsU32:
		return tensor.Uint32, nil
	case SafeTensorsU64:
		return tensor.Uint64, nil
	case SafeTensorsBool:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

// dataTypeToSafeTensorsDType is the inverse of safeTensorsDTypeToDataType.
func dataTypeToSafeTensorsDType(dt tensor.DataType) SafeTensorsDType {
	switch dt {
	case tensor.Float16:
		return SafeTensorsF16
	case tensor.Float32:
		return SafeTensorsF32
	case tensor.Float64:
		return SafeTensorsF64
	case tensor.Int8:
		return SafeTensorsI8
	case tensor.Int16:
		return SafeTensorsI16
	case tensor.Int32:
		return SafeTensorsI32
	case tensor.Int64:
		return SafeTensorsI64
	case tensor.Uint8:
		return SafeTensorsU8
	case tensor.Uint16:
		return SafeTensorsU16
	case tensor.Uint32:
		return SafeTensorsU32
	case tensor.Uint64:
		return SafeTensorsU64
	default:
		return SafeTensorsBool
	}
}

// LoadArray reads a tensor into an Array. BF16 values are widened to
// float32 exactly.
func (r *SafeTensorsReader) LoadArray(name string) (*tensor.Array, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	shape := tensor.Shape(info.Shape)
	if info.DType == SafeTensorsBF16 {
		return tensor.NewArray(tensor.Float32, shape, bf16ToFloat32Bytes(data))
	}
	dtype, err := safeTensorsDTypeToDataType(info.DType)
	if err != nil {
		return nil, fmt.Errorf("failed to convert dtype for tensor %s: %w", name, err)
	}
	return tensor.NewArray(dtype, shape, data)
}

// ReadSet loads every tensor, in file order.
func (r *SafeTensorsReader) ReadSet() (*tensor.Set, error) {
	set := tensor.NewSet()
	for _, name := range r.names {
		a, err := r.LoadArray(name)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		if err := set.Add(name, a); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// bf16ToFloat32Bytes widens little-endian bfloat16 values. A bfloat16 is the
// upper half of a float32.
func bf16ToFloat32Bytes(src []byte) []byte {
	n := len(src) / 2
	dst := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(binary.LittleEndian.Uint16(src[i*2:]))<<16)
	}
	return dst
}

// EncodeSafeTensors writes set in SafeTensors format, tensors laid out in
// insertion order. Fortran-ordered arrays are stored row-major.
func EncodeSafeTensors(w io.Writer, set *tensor.Set, metadata map[string]string) error {
	header := make(map[string]any, set.Len()+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	arrays := make([]*tensor.Array, 0, set.Len())
	var offset int64
	for _, key := range set.Keys() {
		a, _ := set.Get(key)
		a = a.RowMajor()
		size := int64(len(a.Bytes()))
		header[key] = SafeTensorInfo{
			DType:       dataTypeToSafeTensorsDType(a.DType()),
			Shape:       append([]int{}, a.Shape()...),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
		arrays = append(arrays, a)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	// Pad with spaces to 8 bytes so the data section is aligned.
	if pad := (8 - len(headerJSON)%8) % 8; pad > 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return err
	}
	if _, err := w.Write(headerJSON); err != nil {
		return err
	}
	for _, a := range arrays {
		if _, err := w.Write(a.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// WriteSafeTensors writes set to path atomically.
func WriteSafeTensors(path string, set *tensor.Set, metadata map[string]string) error {
	return fsutil.WriteFile(path, func(w io.Writer) error {
		return EncodeSafeTensors(w, set, metadata)
	})
}
