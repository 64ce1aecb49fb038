package compare

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/born-ml/parity/internal/tensor"
)

// Diff is a maximum absolute difference. It marshals NaN and infinities as
// JSON strings, which encoding/json cannot represent as numbers.
type Diff float64

// MarshalJSON implements json.Marshaler.
func (d Diff) MarshalJSON() ([]byte, error) {
	f := float64(d)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Diff) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*d = Diff(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*d = Diff(f)
	return nil
}

// Result is the comparison of one key present on both sides.
type Result struct {
	Key           string          `json:"key" cbor:"key"`
	LeftShape     tensor.Shape    `json:"left_shape" cbor:"left_shape"`
	RightShape    tensor.Shape    `json:"right_shape" cbor:"right_shape"`
	LeftDType     tensor.DataType `json:"left_dtype" cbor:"left_dtype"`
	RightDType    tensor.DataType `json:"right_dtype" cbor:"right_dtype"`
	ShapeMismatch bool            `json:"shape_mismatch" cbor:"shape_mismatch"`
	DTypeMismatch bool            `json:"dtype_mismatch,omitempty" cbor:"dtype_mismatch,omitempty"`
	NumElements   int             `json:"num_elements" cbor:"num_elements"`
	MaxAbsDiff    Diff            `json:"max_abs_diff" cbor:"max_abs_diff"`     // Meaningless when ShapeMismatch
	MismatchCount int             `json:"mismatch_count" cbor:"mismatch_count"` // Elements failing the predicate
	FirstMismatch int             `json:"first_mismatch" cbor:"first_mismatch"` // Flat row-major index, -1 if none
	Passed        bool            `json:"passed" cbor:"passed"`
}

// Report is the aggregate outcome of one Compare call.
type Report struct {
	LeftName  string   `json:"left_name" cbor:"left_name"`
	RightName string   `json:"right_name" cbor:"right_name"`
	RTol      float64  `json:"rtol" cbor:"rtol"`
	ATol      float64  `json:"atol" cbor:"atol"`
	LeftOnly  []string `json:"left_only" cbor:"left_only"`   // Keys missing on the right, sorted
	RightOnly []string `json:"right_only" cbor:"right_only"` // Keys missing on the left, sorted
	Results   []Result `json:"results" cbor:"results"`       // Compared keys in sorted order
	Worst     string   `json:"worst,omitempty" cbor:"worst,omitempty"`
	WorstDiff Diff     `json:"worst_diff" cbor:"worst_diff"`
	Stopped   bool     `json:"stopped" cbor:"stopped"` // Early stop ended the comparison at a failing key
	Skipped   int      `json:"skipped" cbor:"skipped"` // Shared keys left uncompared by early stop
	Success   bool     `json:"success" cbor:"success"`
}

// Passed reports whether every compared key passed. Missing keys do not
// count against it.
func (r *Report) Passed() bool {
	return r.Failed() == 0
}

// Failed returns the number of failing compared keys.
func (r *Report) Failed() int {
	n := 0
	for i := range r.Results {
		if !r.Results[i].Passed {
			n++
		}
	}
	return n
}

// ExitCode maps the verdict to a process exit status: 0 pass, 1 fail.
func (r *Report) ExitCode() int {
	if r.Passed() {
		return 0
	}
	return 1
}

// HasMissing reports whether either side lacks keys the other has.
func (r *Report) HasMissing() bool {
	return len(r.LeftOnly) > 0 || len(r.RightOnly) > 0
}

// Result returns the comparison for key, if it was compared.
func (r *Report) Result(key string) (Result, bool) {
	for _, res := range r.Results {
		if res.Key == key {
			return res, true
		}
	}
	return Result{}, false
}
