package mapper

import (
	"fmt"
)

// WeightMapper maps a single checkpoint parameter name to its flat key.
type WeightMapper interface {
	// MapName converts a dotted checkpoint name to its archive key.
	MapName(name string) (string, error)

	// Architecture returns the policy name (e.g., "resnet50", "lenet").
	Architecture() string
}

// PolicyMapper answers per-name queries from a policy. Optional branch rules
// are indexed as if every branch were present.
type PolicyMapper struct {
	policy *Policy
	keys   map[string]string
}

// NewPolicyMapper indexes every source path policy can produce over bounds.
func NewPolicyMapper(policy *Policy, bounds BoundTable) (*PolicyMapper, error) {
	// Plan against a source that claims every path exists.
	bindings, err := Plan(everything{}, policy, bounds)
	if err != nil {
		return nil, err
	}
	m := &PolicyMapper{policy: policy, keys: make(map[string]string, len(bindings))}
	for _, b := range bindings {
		m.keys[b.Source] = b.Key
	}
	return m, nil
}

// MapName converts a checkpoint name to its archive key.
func (m *PolicyMapper) MapName(name string) (string, error) {
	key, ok := m.keys[name]
	if !ok {
		return "", fmt.Errorf("%w for %q in policy %s", ErrNoRule, name, m.policy.Name)
	}
	return key, nil
}

// Architecture returns the policy name.
func (m *PolicyMapper) Architecture() string {
	return m.policy.Name
}

type everything struct{}

func (everything) Has(string) bool { return true }

// GetMapper returns a mapper for a preset with its default bounds, or nil
// if the preset does not exist.
func GetMapper(architecture string) WeightMapper {
	p, err := Preset(architecture)
	if err != nil {
		return nil
	}
	m, err := NewPolicyMapper(p, nil)
	if err != nil {
		return nil
	}
	return m
}

// DetectArchitecture picks the preset that maps the most of names without a
// missing required path. It returns "" when no preset fits. Ties go to the
// first preset in sorted order.
func DetectArchitecture(names []string) string {
	src := newPathSet(names)
	best, bestCount := "", 0
	for _, name := range Presets() {
		p, err := Preset(name)
		if err != nil {
			continue
		}
		bindings, err := Plan(src, p, nil)
		if err != nil {
			continue
		}
		if len(bindings) > bestCount {
			best, bestCount = name, len(bindings)
		}
	}
	return best
}
