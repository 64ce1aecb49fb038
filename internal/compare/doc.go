// Package compare checks numeric parity between two named array sets.
//
// Keys present on only one side are reported but never compared. Shared
// keys must have identical shapes; their elements are widened to float64 and
// must satisfy
//
//	|a - b| <= atol + rtol*|b|
//
// where b is taken from the right side. The Report records the per-key
// outcome, the worst offender and an exit code suitable for CI gating.
package compare
