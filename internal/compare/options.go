package compare

import (
	"fmt"
	"math"
)

// Default tolerances. They absorb the floating point accumulation noise
// expected between two independent implementations of the same arithmetic.
const (
	DefaultRTol = 1e-5
	DefaultATol = 1e-6
)

// Options configures a comparison.
type Options struct {
	RTol      float64 // Relative tolerance, scaled by |right|
	ATol      float64 // Absolute tolerance
	EarlyStop bool    // Stop after the first failing key (sorted order)
	Workers   int     // Parallel workers when EarlyStop is off; 0 uses all CPUs, 1 is sequential

	LeftName  string // Label of the left side in rendered output
	RightName string // Label of the right side in rendered output
}

// DefaultOptions returns rtol 1e-5, atol 1e-6, all keys compared.
func DefaultOptions() Options {
	return Options{RTol: DefaultRTol, ATol: DefaultATol, LeftName: "left", RightName: "right"}
}

// Validate rejects negative or non-finite tolerances.
func (o Options) Validate() error {
	for _, tol := range []struct {
		name  string
		value float64
	}{{"rtol", o.RTol}, {"atol", o.ATol}} {
		if tol.value < 0 || math.IsNaN(tol.value) || math.IsInf(tol.value, 0) {
			return fmt.Errorf("%s must be a finite non-negative number, got %v", tol.name, tol.value)
		}
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", o.Workers)
	}
	return nil
}

func (o Options) labels() (string, string) {
	left, right := o.LeftName, o.RightName
	if left == "" {
		left = "left"
	}
	if right == "" {
		right = "right"
	}
	return left, right
}
