package mapper

import (
	"fmt"
	"strings"

	"github.com/born-ml/parity/internal/tensor"
)

// Source answers presence queries for dotted parameter paths. *Tree
// implements it; DetectArchitecture uses a bare path set.
type Source interface {
	Has(path string) bool
}

// Tree is an ordered forest of parameter leaves addressed by dotted paths
// such as "layer1.0.downsample.0.weight".
//
// A path is either a leaf holding an array or an interior node; it can
// never be both.
type Tree struct {
	order    []string
	leaves   map[string]*tensor.Array
	interior map[string]struct{}
}

// NewTree builds a tree from a flat set whose keys are dotted paths.
func NewTree(set *tensor.Set) (*Tree, error) {
	t := &Tree{
		leaves:   make(map[string]*tensor.Array, set.Len()),
		interior: make(map[string]struct{}),
	}
	for _, key := range set.Keys() {
		a, _ := set.Get(key)
		if err := t.Insert(key, a); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Insert adds a leaf. It fails on an empty segment, a duplicate path, a path
// that is already an interior node, or a path below an existing leaf.
func (t *Tree) Insert(path string, a *tensor.Array) error {
	if t.leaves == nil {
		t.leaves = make(map[string]*tensor.Array)
		t.interior = make(map[string]struct{})
	}
	if a == nil {
		return fmt.Errorf("tree: nil array at %q", path)
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("tree: empty segment in path %q", path)
		}
	}
	if _, ok := t.leaves[path]; ok {
		return &tensor.DuplicateKeyError{Key: path}
	}
	if _, ok := t.interior[path]; ok {
		return fmt.Errorf("tree: %q already has children", path)
	}
	for i := 1; i < len(segments); i++ {
		prefix := strings.Join(segments[:i], ".")
		if _, ok := t.leaves[prefix]; ok {
			return fmt.Errorf("tree: %q is below leaf %q", path, prefix)
		}
	}
	for i := 1; i < len(segments); i++ {
		t.interior[strings.Join(segments[:i], ".")] = struct{}{}
	}
	t.order = append(t.order, path)
	t.leaves[path] = a
	return nil
}

// Lookup returns the leaf array at path.
func (t *Tree) Lookup(path string) (*tensor.Array, bool) {
	a, ok := t.leaves[path]
	return a, ok
}

// Has reports whether path is a leaf.
func (t *Tree) Has(path string) bool {
	_, ok := t.leaves[path]
	return ok
}

// HasNode reports whether path is a leaf or an interior node.
func (t *Tree) HasNode(path string) bool {
	if t.Has(path) {
		return true
	}
	_, ok := t.interior[path]
	return ok
}

// Paths returns leaf paths in insertion order.
func (t *Tree) Paths() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.order)
}

// pathSet is a Source over bare names.
type pathSet map[string]struct{}

func newPathSet(paths []string) pathSet {
	s := make(pathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

func (s pathSet) Has(path string) bool {
	_, ok := s[path]
	return ok
}
