package compare

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/born-ml/parity/internal/codec"
)

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatJSON, FormatCBOR}

// Write renders the report in the named format.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case FormatText, "":
		return r.WriteText(w)
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatCBOR:
		return r.WriteCBOR(w)
	default:
		return fmt.Errorf("unknown report format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// WriteText renders the human readable report: missing-key warnings, one
// line per compared key, then the verdict and the worst offender.
func (r *Report) WriteText(w io.Writer) error {
	ew := &errWriter{w: w}

	if len(r.LeftOnly) > 0 {
		ew.printf("Missing in %s: %s\n", r.RightName, pyList(r.LeftOnly))
	}
	if len(r.RightOnly) > 0 {
		ew.printf("Missing in %s: %s\n", r.LeftName, pyList(r.RightOnly))
	}

	for _, res := range r.Results {
		if res.ShapeMismatch {
			ew.printf("%s: shape mismatch %s vs %s\n", res.Key, res.LeftShape, res.RightShape)
			continue
		}
		verdict := "OK"
		if !res.Passed {
			verdict = "FAIL"
		}
		ew.printf("%s: max_abs_diff=%s %s\n", res.Key, formatDiff(res.MaxAbsDiff), verdict)
	}

	if failed := r.Failed(); failed == 0 {
		ew.printf("All compared layers matched within tolerance.\n")
	} else {
		ew.printf("FAILED layers: %d\n", failed)
	}
	if r.Worst != "" {
		ew.printf("Worst layer %s diff=%s\n", r.Worst, formatDiff(r.WorstDiff))
	}
	if r.Stopped && r.Skipped > 0 {
		ew.printf("Stopped at first failure; %d layers not compared.\n", r.Skipped)
	}
	return ew.err
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCBOR renders the report as deterministic CBOR.
func (r *Report) WriteCBOR(w io.Writer) error {
	return codec.NewEncoder(w).Encode(r)
}

// formatDiff prints a diff the way Python's "%.6g" does.
func formatDiff(d Diff) string {
	f := float64(d)
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// pyList formats keys as a Python list literal: ['a', 'b'].
func pyList(keys []string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('\'')
		sb.WriteString(strings.ReplaceAll(k, "'", `\'`))
		sb.WriteByte('\'')
	}
	sb.WriteByte(']')
	return sb.String()
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
