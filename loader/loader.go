// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader opens framework checkpoints for export.
//
// Supported formats are SafeTensors, NPZ archives and .pbnd bundles. The
// architecture is detected from parameter names so a matching naming policy
// can be chosen automatically.
//
// Example:
//
//	ckpt, err := loader.OpenCheckpoint("resnet50.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ckpt.Close()
//
//	fmt.Println(ckpt.Format(), ckpt.Architecture()) // SafeTensors resnet50
package loader

import (
	"github.com/born-ml/parity/internal/loader"
	"github.com/born-ml/parity/tensor"
)

// Format represents a checkpoint container format.
type Format = loader.Format

// Supported checkpoint formats.
const (
	FormatUnknown     Format = loader.FormatUnknown
	FormatSafeTensors Format = loader.FormatSafeTensors
	FormatNPZ         Format = loader.FormatNPZ
	FormatBundle      Format = loader.FormatBundle
)

// Checkpoint provides uniform access to the parameters of a checkpoint file.
type Checkpoint = loader.Checkpoint

// FormatFromPath returns the format implied by the file extension.
func FormatFromPath(path string) Format {
	return loader.FormatFromPath(path)
}

// OpenCheckpoint opens a checkpoint and detects its format and architecture.
func OpenCheckpoint(path string) (Checkpoint, error) {
	return loader.OpenCheckpoint(path)
}

// ReadCheckpoint loads every parameter of the checkpoint at path.
func ReadCheckpoint(path string) (*tensor.Set, error) {
	return loader.ReadCheckpoint(path)
}

// WriteSafeTensors writes set to path in the SafeTensors format.
func WriteSafeTensors(path string, set *tensor.Set, metadata map[string]string) error {
	return loader.WriteSafeTensors(path, set, metadata)
}
