package compare

import (
	"math"
	"sort"

	"github.com/born-ml/parity/internal/parallel"
	"github.com/born-ml/parity/internal/tensor"
)

// Compare partitions the keys of left and right, compares the shared keys
// elementwise and aggregates the outcome.
//
// Compare never fails: shape mismatches and missing keys are recorded in the
// returned Report. Options are expected to be valid (see Options.Validate).
func Compare(left, right *tensor.Set, opts Options) *Report {
	leftName, rightName := opts.labels()
	report := &Report{
		LeftName:  leftName,
		RightName: rightName,
		RTol:      opts.RTol,
		ATol:      opts.ATol,
		LeftOnly:  []string{},
		RightOnly: []string{},
	}

	shared := partition(left, right, report)

	if opts.EarlyStop {
		for i, key := range shared {
			res := compareKey(key, mustGet(left, key), mustGet(right, key), opts)
			report.Results = append(report.Results, res)
			if !res.Passed {
				report.Stopped = true
				report.Skipped = len(shared) - i - 1
				break
			}
		}
	} else {
		report.Results = make([]Result, len(shared))
		cfg := parallel.DefaultConfig().WithWorkers(opts.Workers)
		parallel.For(len(shared), func(i int) {
			key := shared[i]
			report.Results[i] = compareKey(key, mustGet(left, key), mustGet(right, key), opts)
		}, cfg)
	}
	if report.Results == nil {
		report.Results = []Result{}
	}

	report.Worst, report.WorstDiff = worstOffender(report.Results)
	report.Success = report.Passed()
	return report
}

// partition fills the missing-key lists and returns the sorted intersection.
func partition(left, right *tensor.Set, report *Report) []string {
	var shared []string
	for _, key := range left.SortedKeys() {
		if right.Has(key) {
			shared = append(shared, key)
		} else {
			report.LeftOnly = append(report.LeftOnly, key)
		}
	}
	for _, key := range right.SortedKeys() {
		if !left.Has(key) {
			report.RightOnly = append(report.RightOnly, key)
		}
	}
	return shared
}

func mustGet(s *tensor.Set, key string) *tensor.Array {
	a, _ := s.Get(key)
	return a
}

// compareKey compares one pair of arrays. Shapes must match exactly; there
// is no broadcasting.
func compareKey(key string, a, b *tensor.Array, opts Options) Result {
	res := Result{
		Key:           key,
		LeftShape:     a.Shape().Clone(),
		RightShape:    b.Shape().Clone(),
		LeftDType:     a.DType(),
		RightDType:    b.DType(),
		DTypeMismatch: a.DType() != b.DType(),
		FirstMismatch: -1,
	}
	if !a.Shape().Equal(b.Shape()) {
		res.ShapeMismatch = true
		return res
	}

	a, b = a.RowMajor(), b.RowMajor()
	n := a.NumElements()
	res.NumElements = n

	maxDiff := 0.0
	for i := 0; i < n; i++ {
		diff, ok := elementDiff(a.Float64At(i), b.Float64At(i), opts.RTol, opts.ATol)
		if !ok {
			res.MismatchCount++
			if res.FirstMismatch < 0 {
				res.FirstMismatch = i
			}
		}
		if math.IsNaN(diff) || diff > maxDiff {
			maxDiff = diff
		}
		if math.IsNaN(maxDiff) {
			// NaN is sticky; only the mismatch count still changes.
			for i++; i < n; i++ {
				if _, ok := elementDiff(a.Float64At(i), b.Float64At(i), opts.RTol, opts.ATol); !ok {
					res.MismatchCount++
				}
			}
			break
		}
	}
	res.MaxAbsDiff = Diff(maxDiff)
	res.Passed = res.MismatchCount == 0
	return res
}

// elementDiff returns |x - y| and whether the pair satisfies
// |x - y| <= atol + rtol*|y|. NaN on either side is never close.
func elementDiff(x, y, rtol, atol float64) (float64, bool) {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN(), false
	case x == y:
		return 0, true
	case math.IsInf(x, 0) || math.IsInf(y, 0):
		return math.Inf(1), false
	}
	diff := math.Abs(x - y)
	return diff, diff <= atol+rtol*math.Abs(y)
}

// worstOffender picks the shape-matching result with the largest diff.
// Results are in sorted key order, so ties go to the first key. NaN ranks
// above every number.
func worstOffender(results []Result) (string, Diff) {
	worst, worstDiff, found := "", 0.0, false
	for _, res := range results {
		if res.ShapeMismatch {
			continue
		}
		d := float64(res.MaxAbsDiff)
		if !found || ranksAbove(d, worstDiff) {
			worst, worstDiff, found = res.Key, d, true
		}
	}
	return worst, Diff(worstDiff)
}

func ranksAbove(d, than float64) bool {
	if math.IsNaN(than) {
		return false
	}
	return math.IsNaN(d) || d > than
}

// SortedResults returns results ordered by descending diff, shape
// mismatches first. Ties keep key order.
func SortedResults(results []Result) []Result {
	out := make([]Result, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ShapeMismatch != out[j].ShapeMismatch {
			return out[i].ShapeMismatch
		}
		return ranksAbove(float64(out[i].MaxAbsDiff), float64(out[j].MaxAbsDiff))
	})
	return out
}
