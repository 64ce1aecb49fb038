package tensor

import (
	"fmt"
	"sort"
)

// DuplicateKeyError reports a key that appears more than once in a Set or archive.
type DuplicateKeyError struct {
	Key string
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q", e.Key)
}

// Set is an insertion-ordered collection of named arrays.
//
// Keys are unique. Encoders write entries in insertion order so the same Set
// always produces the same bytes; lookups ignore order.
type Set struct {
	keys   []string
	arrays map[string]*Array
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{arrays: make(map[string]*Array)}
}

// Add appends a named array. It returns a *DuplicateKeyError if key is already present.
func (s *Set) Add(key string, a *Array) error {
	if a == nil {
		return fmt.Errorf("nil array for key %q", key)
	}
	if _, ok := s.arrays[key]; ok {
		return &DuplicateKeyError{Key: key}
	}
	s.keys = append(s.keys, key)
	s.arrays[key] = a
	return nil
}

// MustAdd is like Add but panics on error.
func (s *Set) MustAdd(key string, a *Array) {
	if err := s.Add(key, a); err != nil {
		panic(err)
	}
}

// Get returns the array stored under key.
func (s *Set) Get(key string) (*Array, bool) {
	a, ok := s.arrays[key]
	return a, ok
}

// Has reports whether key is present.
func (s *Set) Has(key string) bool {
	_, ok := s.arrays[key]
	return ok
}

// Len returns the number of entries.
func (s *Set) Len() int {
	return len(s.keys)
}

// Keys returns the keys in insertion order.
func (s *Set) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// SortedKeys returns the keys in lexical order.
func (s *Set) SortedKeys() []string {
	out := s.Keys()
	sort.Strings(out)
	return out
}

// NumBytes returns the total payload size of all arrays.
func (s *Set) NumBytes() int64 {
	var total int64
	for _, a := range s.arrays {
		total += int64(len(a.data))
	}
	return total
}
