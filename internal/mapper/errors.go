package mapper

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a MappingError.
type ErrorKind string

// Mapping error kinds.
const (
	KindMissingSource ErrorKind = "missing_source" // required path absent from the tree
	KindCollision     ErrorKind = "collision"      // two sources produce the same key
	KindBadTemplate   ErrorKind = "bad_template"   // malformed or misplaced placeholder
	KindUnknownBranch ErrorKind = "unknown_branch" // rule references an undeclared branch
	KindMissingBounds ErrorKind = "missing_bounds" // repeated stage without a bound table
	KindBadBounds     ErrorKind = "bad_bounds"     // negative or repeated group in a bound table
	KindBadPolicy     ErrorKind = "bad_policy"     // structural problem in the policy itself
)

// ErrNoRule is returned by WeightMapper.MapName for a name no rule produces.
var ErrNoRule = errors.New("no mapping rule")

// MappingError aborts an export. Nothing is emitted when it is returned.
type MappingError struct {
	Kind    ErrorKind
	Policy  string // Policy name
	Stage   string // Stage name, if any
	Source  string // Source path involved
	Other   string // Second source path (collisions)
	Key     string // Output key involved
	Details string
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Policy != "" {
		fmt.Fprintf(&sb, ": policy %q", e.Policy)
	}
	if e.Stage != "" {
		fmt.Fprintf(&sb, " stage %q", e.Stage)
	}
	switch {
	case e.Other != "":
		fmt.Fprintf(&sb, ": sources %q and %q both map to key %q", e.Source, e.Other, e.Key)
	case e.Source != "" && e.Key != "":
		fmt.Fprintf(&sb, ": source %q (key %q)", e.Source, e.Key)
	case e.Source != "":
		fmt.Fprintf(&sb, ": source %q", e.Source)
	}
	if e.Details != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Details)
	}
	return sb.String()
}

// IsKind reports whether err is a *MappingError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var me *MappingError
	return errors.As(err, &me) && me.Kind == kind
}
