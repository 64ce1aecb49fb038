package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/born-ml/parity/internal/bundle"
	"github.com/born-ml/parity/internal/mapper"
	"github.com/born-ml/parity/internal/npz"
	"github.com/born-ml/parity/internal/tensor"
)

// Format represents the checkpoint file format.
type Format int

// Supported checkpoint formats.
const (
	FormatUnknown Format = iota
	FormatSafeTensors
	FormatNPZ
	FormatBundle
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatSafeTensors:
		return "SafeTensors"
	case FormatNPZ:
		return "NPZ"
	case FormatBundle:
		return "Bundle"
	default:
		return "Unknown"
	}
}

// FormatFromPath detects the format from the file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".safetensors":
		return FormatSafeTensors
	case ".npz":
		return FormatNPZ
	case ".pbnd":
		return FormatBundle
	default:
		return FormatUnknown
	}
}

// Checkpoint provides a unified interface over checkpoint files holding a
// flat list of dotted parameter names.
type Checkpoint interface {
	// Close closes the underlying file.
	Close() error

	// Format returns the checkpoint format.
	Format() Format

	// Architecture returns the detected preset name, or "" if none fits.
	Architecture() string

	// Metadata returns format specific metadata. May be nil.
	Metadata() map[string]string

	// TensorNames returns all parameter names in file order.
	TensorNames() []string

	// LoadArray decodes one parameter.
	LoadArray(name string) (*tensor.Array, error)
}

type safeTensorsCheckpoint struct {
	reader       *SafeTensorsReader
	architecture string
}

func (c *safeTensorsCheckpoint) Close() error                { return c.reader.Close() }
func (c *safeTensorsCheckpoint) Format() Format              { return FormatSafeTensors }
func (c *safeTensorsCheckpoint) Architecture() string        { return c.architecture }
func (c *safeTensorsCheckpoint) Metadata() map[string]string { return c.reader.Metadata() }
func (c *safeTensorsCheckpoint) TensorNames() []string       { return c.reader.TensorNames() }

func (c *safeTensorsCheckpoint) LoadArray(name string) (*tensor.Array, error) {
	return c.reader.LoadArray(name)
}

type npzCheckpoint struct {
	reader       *npz.Reader
	architecture string
}

func (c *npzCheckpoint) Close() error                { return c.reader.Close() }
func (c *npzCheckpoint) Format() Format              { return FormatNPZ }
func (c *npzCheckpoint) Architecture() string        { return c.architecture }
func (c *npzCheckpoint) Metadata() map[string]string { return nil }
func (c *npzCheckpoint) TensorNames() []string       { return c.reader.Keys() }

func (c *npzCheckpoint) LoadArray(name string) (*tensor.Array, error) {
	return c.reader.Array(name)
}

type bundleCheckpoint struct {
	reader       *bundle.Reader
	architecture string
}

func (c *bundleCheckpoint) Close() error                { return c.reader.Close() }
func (c *bundleCheckpoint) Format() Format              { return FormatBundle }
func (c *bundleCheckpoint) Architecture() string        { return c.architecture }
func (c *bundleCheckpoint) Metadata() map[string]string { return c.reader.Metadata() }
func (c *bundleCheckpoint) TensorNames() []string       { return c.reader.Keys() }

func (c *bundleCheckpoint) LoadArray(name string) (*tensor.Array, error) {
	return c.reader.Array(name)
}

// OpenCheckpoint opens a checkpoint file and auto-detects the format.
// Supports .safetensors, .npz and .pbnd files.
//
// Example:
//
//	ckpt, err := loader.OpenCheckpoint("resnet50.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ckpt.Close()
//
//	fmt.Printf("Format: %s\n", ckpt.Format())
//	fmt.Printf("Architecture: %s\n", ckpt.Architecture())
func OpenCheckpoint(path string) (Checkpoint, error) {
	switch FormatFromPath(path) {
	case FormatSafeTensors:
		reader, err := NewSafeTensorsReader(path)
		if err != nil {
			return nil, err
		}
		return &safeTensorsCheckpoint{
			reader:       reader,
			architecture: mapper.DetectArchitecture(reader.TensorNames()),
		}, nil
	case FormatNPZ:
		reader, err := npz.Open(path)
		if err != nil {
			return nil, err
		}
		return &npzCheckpoint{
			reader:       reader,
			architecture: mapper.DetectArchitecture(reader.Keys()),
		}, nil
	case FormatBundle:
		reader, err := bundle.Open(path)
		if err != nil {
			return nil, err
		}
		return &bundleCheckpoint{
			reader:       reader,
			architecture: mapper.DetectArchitecture(reader.Keys()),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s (expected .safetensors, .npz or .pbnd)",
			filepath.Ext(path))
	}
}

// ReadAll loads every parameter of ckpt into a Set in file order.
func ReadAll(ckpt Checkpoint) (*tensor.Set, error) {
	set := tensor.NewSet()
	for _, name := range ckpt.TensorNames() {
		a, err := ckpt.LoadArray(name)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		if err := set.Add(name, a); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// ReadCheckpoint opens path and loads all of it.
func ReadCheckpoint(path string) (*tensor.Set, error) {
	ckpt, err := OpenCheckpoint(path)
	if err != nil {
		return nil, err
	}
	defer ckpt.Close()
	return ReadAll(ckpt)
}
