// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package compare checks two sets of named arrays for numeric parity.
//
// Every key present in both sets is compared element-wise with
// |a-b| <= atol + rtol*|b|. Keys present in only one set are reported but
// do not fail the comparison.
//
// Example:
//
//	report := compare.Compare(reference, candidate, compare.DefaultOptions())
//	report.WriteText(os.Stdout)
//	os.Exit(report.ExitCode())
package compare

import (
	"github.com/born-ml/parity/internal/compare"
	"github.com/born-ml/parity/tensor"
)

// Default tolerances.
const (
	DefaultRTol = compare.DefaultRTol
	DefaultATol = compare.DefaultATol
)

// Report output formats.
const (
	FormatText = compare.FormatText
	FormatJSON = compare.FormatJSON
	FormatCBOR = compare.FormatCBOR
)

// Options configures a comparison.
type Options = compare.Options

// Result is the outcome for a single key.
type Result = compare.Result

// Report is the outcome of a whole comparison.
type Report = compare.Report

// Diff is a maximum absolute difference. It serializes NaN and infinities
// as strings in JSON.
type Diff = compare.Diff

// DefaultOptions returns the default tolerances with parallel comparison.
func DefaultOptions() Options {
	return compare.DefaultOptions()
}

// Compare checks every shared key of left and right.
func Compare(left, right *tensor.Set, opts Options) *Report {
	return compare.Compare(left, right, opts)
}
