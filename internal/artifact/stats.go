package artifact

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/born-ml/parity/internal/tensor"
)

// DefaultHead is the number of leading values Stats keeps.
const DefaultHead = 5

// Summary describes the value distribution of one array.
type Summary struct {
	Key   string          `json:"key"`
	Shape tensor.Shape    `json:"shape"`
	DType tensor.DataType `json:"dtype"`
	Count int             `json:"count"`
	Min   float64         `json:"min"`
	Max   float64         `json:"max"`
	Mean  float64         `json:"mean"`
	Std   float64         `json:"std"` // Population standard deviation
	NaNs  int             `json:"nans"`
	Head  []float64       `json:"head"` // First values in row-major order
}

// Stats summarizes a. NaN elements are counted and excluded from min, max,
// mean and std. An empty array yields zero statistics.
func Stats(key string, a *tensor.Array, head int) Summary {
	a = a.RowMajor()
	n := a.NumElements()
	s := Summary{
		Key:   key,
		Shape: a.Shape().Clone(),
		DType: a.DType(),
		Count: n,
		Head:  make([]float64, 0, min(head, n)),
	}

	// Welford's update keeps the variance stable for large arrays.
	var (
		mean, m2 float64
		k        int
	)
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		v := a.Float64At(i)
		if i < head {
			s.Head = append(s.Head, v)
		}
		if math.IsNaN(v) {
			s.NaNs++
			continue
		}
		k++
		delta := v - mean
		mean += delta / float64(k)
		m2 += delta * (v - mean)
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if k == 0 {
		s.Min, s.Max = 0, 0
		return s
	}
	s.Mean = mean
	s.Std = math.Sqrt(m2 / float64(k))
	return s
}

// WriteStats prints a summary per key in the layout of the weight debugging
// tool: shape, dtype, min/max, mean/std and the first few values.
func WriteStats(w io.Writer, summaries []Summary) error {
	for _, s := range summaries {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s:\n", s.Key)
		fmt.Fprintf(&sb, "  shape: %s\n", s.Shape)
		fmt.Fprintf(&sb, "  dtype: %s\n", s.DType)
		fmt.Fprintf(&sb, "  min/max: %.6f / %.6f\n", s.Min, s.Max)
		fmt.Fprintf(&sb, "  mean/std: %.6f / %.6f\n", s.Mean, s.Std)
		if s.NaNs > 0 {
			fmt.Fprintf(&sb, "  nans: %d\n", s.NaNs)
		}
		fmt.Fprintf(&sb, "  first few: %s\n\n", formatHead(s.Head))
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

func formatHead(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', 8, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
