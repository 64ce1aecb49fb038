package mapper

import (
	"fmt"

	"github.com/born-ml/parity/internal/tensor"
)

// Binding is one planned source path to key assignment.
type Binding struct {
	Stage  string
	Group  int
	Block  int
	Source string
	Key    string
	Branch string // Branch that enabled the rule, empty if unconditional
}

// Plan expands policy over bounds against src without touching any array.
//
// Bindings come in stage order, then ascending group, then ascending block,
// then declared rule order. A nil or empty bounds falls back to the policy's
// own default bounds. Plan fails with a *MappingError when a required path
// is missing, two sources produce the same key, or the policy is malformed.
func Plan(src Source, policy *Policy, bounds BoundTable) ([]Binding, error) {
	cp, err := policy.compile()
	if err != nil {
		return nil, err
	}
	if len(bounds) == 0 {
		bounds = policy.Bounds
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	ordered := bounds.sorted()

	var (
		bindings []Binding
		owner    = make(map[string]string) // key -> source
	)
	emit := func(st *compiledStage, group, block int) error {
		present := make([]bool, len(st.probes))
		for i, probe := range st.probes {
			present[i] = src.Has(probe.expand(group, block))
		}
		for _, r := range st.rules {
			branch := ""
			if r.branch >= 0 {
				if !present[r.branch] {
					continue
				}
				branch = st.branches[r.branch]
			}
			source := r.source.expand(group, block)
			key := r.key.expand(group, block)
			if !src.Has(source) {
				return &MappingError{Kind: KindMissingSource, Policy: cp.name, Stage: st.name, Source: source, Key: key}
			}
			if prev, dup := owner[key]; dup {
				me := &MappingError{Kind: KindCollision, Policy: cp.name, Stage: st.name, Source: prev, Other: source, Key: key}
				if prev == source {
					me.Other, me.Details = "", "key emitted twice for the same source"
				}
				return me
			}
			owner[key] = source
			bindings = append(bindings, Binding{
				Stage: st.name, Group: group, Block: block,
				Source: source, Key: key, Branch: branch,
			})
		}
		return nil
	}

	for i := range cp.stages {
		st := &cp.stages[i]
		if !st.repeated {
			if err := emit(st, 0, 0); err != nil {
				return nil, err
			}
			continue
		}
		if len(ordered) == 0 {
			return nil, &MappingError{Kind: KindMissingBounds, Policy: cp.name, Stage: st.name,
				Details: "repeated stage needs a bound table"}
		}
		for _, gb := range ordered {
			for block := 0; block < gb.Blocks; block++ {
				if err := emit(st, gb.Group, block); err != nil {
					return nil, err
				}
			}
		}
	}
	return bindings, nil
}

// Map flattens tree into a Set using policy and bounds. It is pure: the same
// tree, policy, and bounds always produce the same keys in the same order.
// On error nothing is returned.
func Map(tree *Tree, policy *Policy, bounds BoundTable) (*tensor.Set, error) {
	bindings, err := Plan(tree, policy, bounds)
	if err != nil {
		return nil, err
	}
	cp, err := policy.compile()
	if err != nil {
		return nil, err
	}

	out := tensor.NewSet()
	for _, b := range bindings {
		a, _ := tree.Lookup(b.Source)
		if cp.doCast {
			if a, err = a.Cast(cp.cast); err != nil {
				return nil, fmt.Errorf("cast %q to %s: %w", b.Source, cp.cast, err)
			}
		}
		if err := out.Add(b.Key, a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Unmapped returns the tree paths no binding consumes, in tree order.
func Unmapped(tree *Tree, policy *Policy, bounds BoundTable) ([]string, error) {
	bindings, err := Plan(tree, policy, bounds)
	if err != nil {
		return nil, err
	}
	used := make(map[string]struct{}, len(bindings))
	for _, b := range bindings {
		used[b.Source] = struct{}{}
	}
	var rest []string
	for _, p := range tree.Paths() {
		if _, ok := used[p]; !ok {
			rest = append(rest, p)
		}
	}
	return rest, nil
}
