package loader

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/parity/internal/bundle"
	"github.com/born-ml/parity/internal/mapper"
	"github.com/born-ml/parity/internal/npz"
	"github.com/born-ml/parity/internal/tensor"
)

func lenetCheckpoint() *tensor.Set {
	set := tensor.NewSet()
	for _, name := range []string{
		"conv1.weight", "conv1.bias", "conv2.weight", "conv2.bias",
		"fc1.weight", "fc1.bias", "fc2.weight", "fc2.bias", "fc3.weight", "fc3.bias",
	} {
		set.MustAdd(name, tensor.MustFromSlice(tensor.Shape{2}, []float32{1, 2}))
	}
	return set
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"model.safetensors": FormatSafeTensors,
		"W.NPZ":             FormatNPZ,
		"w.pbnd":            FormatBundle,
		"model.gguf":        FormatUnknown,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%s) = %s, want %s", path, got, want)
		}
	}
}

func TestOpenCheckpoint(t *testing.T) {
	dir := t.TempDir()
	set := lenetCheckpoint()

	writers := map[Format]func(string) error{
		FormatSafeTensors: func(p string) error { return WriteSafeTensors(p, set, nil) },
		FormatNPZ:         func(p string) error { return npz.WriteFile(p, set, npz.Options{}) },
		FormatBundle:      func(p string) error { return bundle.WriteFile(p, set, bundle.WriterOptions{}) },
	}
	paths := map[Format]string{
		FormatSafeTensors: filepath.Join(dir, "lenet.safetensors"),
		FormatNPZ:         filepath.Join(dir, "lenet.npz"),
		FormatBundle:      filepath.Join(dir, "lenet.pbnd"),
	}

	for format, write := range writers {
		t.Run(format.String(), func(t *testing.T) {
			path := paths[format]
			if err := write(path); err != nil {
				t.Fatalf("write failed: %v", err)
			}

			ckpt, err := OpenCheckpoint(path)
			if err != nil {
				t.Fatalf("OpenCheckpoint failed: %v", err)
			}
			defer ckpt.Close()

			if ckpt.Format() != format {
				t.Errorf("Expected format %s, got %s", format, ckpt.Format())
			}
			if ckpt.Architecture() != mapper.ArchitectureLeNet {
				t.Errorf("Expected architecture %s, got %q", mapper.ArchitectureLeNet, ckpt.Architecture())
			}

			got, err := ReadAll(ckpt)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if got.Len() != set.Len() {
				t.Fatalf("Expected %d tensors, got %d", set.Len(), got.Len())
			}
			for _, name := range set.Keys() {
				a, _ := set.Get(name)
				b, ok := got.Get(name)
				if !ok || !a.Equal(b) {
					t.Errorf("Tensor %s differs", name)
				}
			}
		})
	}
}

func TestOpenCheckpointUnsupported(t *testing.T) {
	if _, err := OpenCheckpoint("model.gguf"); err == nil {
		t.Error("Expected error for unsupported format")
	}
	if _, err := ReadCheckpoint(filepath.Join(t.TempDir(), "missing.npz")); err == nil {
		t.Error("Expected error for missing file")
	}
}
