// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package artifact reads and writes array artifacts: single .npy files,
// directories of .npy files, .npz archives and .pbnd bundles.
//
// Example:
//
//	d, _ := artifact.NewDumper("go_out")
//	d.Stage(10, "conv1_out", activations) // go_out/10_conv1_out.npy
package artifact

import (
	"context"

	"github.com/born-ml/parity/internal/artifact"
	"github.com/born-ml/parity/tensor"
)

// SaveOptions configures Save.
type SaveOptions = artifact.SaveOptions

// Dumper writes stage-keyed arrays into a directory.
type Dumper = artifact.Dumper

// Load reads the artifact at location; the kind is detected from the path.
func Load(ctx context.Context, location string) (*tensor.Set, error) {
	return artifact.Load(ctx, location)
}

// LoadPair loads two artifacts concurrently.
func LoadPair(ctx context.Context, left, right string) (*tensor.Set, *tensor.Set, error) {
	return artifact.LoadPair(ctx, left, right)
}

// Save writes set to location. The extension selects the container.
func Save(location string, set *tensor.Set, opts SaveOptions) error {
	return artifact.Save(location, set, opts)
}

// NewDumper creates dir if needed and returns a Dumper writing into it.
func NewDumper(dir string) (*Dumper, error) {
	return artifact.NewDumper(dir)
}

// StageKey formats a stage-prefixed key such as "10_conv1_out".
func StageKey(stage int, suffix string) (string, error) {
	return artifact.StageKey(stage, suffix)
}
