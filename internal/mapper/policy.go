package mapper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/born-ml/parity/internal/tensor"
)

// Policy is a versioned, declarative naming policy that maps dotted
// checkpoint paths to flat archive keys.
type Policy struct {
	Name    string     `yaml:"name" json:"name"`
	Version int        `yaml:"version" json:"version"`
	Cast    string     `yaml:"cast,omitempty" json:"cast,omitempty"`     // Optional dtype applied to every emitted array
	Bounds  BoundTable `yaml:"bounds,omitempty" json:"bounds,omitempty"` // Default bounds for repeated stages
	Stages  []Stage    `yaml:"stages" json:"stages"`
}

// Stage is one architectural section of a policy. A repeated stage is
// instantiated once per (group, block) pair of the bound table.
type Stage struct {
	Name     string   `yaml:"name" json:"name"`
	Repeated bool     `yaml:"repeated,omitempty" json:"repeated,omitempty"`
	Branches []Branch `yaml:"branches,omitempty" json:"branches,omitempty"`
	Rules    []Rule   `yaml:"rules" json:"rules"`
}

// Rule maps one source path pattern to one key template. Rules naming a
// Branch are emitted only when that branch's probe path exists.
type Rule struct {
	Source string `yaml:"source" json:"source"`
	Key    string `yaml:"key" json:"key"`
	Branch string `yaml:"branch,omitempty" json:"branch,omitempty"`
}

// Branch is an optional substructure detected by the presence of Probe.
type Branch struct {
	Name  string `yaml:"name" json:"name"`
	Probe string `yaml:"probe" json:"probe"`
}

// GroupBound gives the number of blocks in one group of a repeated stage.
// Blocks are numbered from zero.
type GroupBound struct {
	Group  int `yaml:"group" json:"group"`
	Blocks int `yaml:"blocks" json:"blocks"`
}

// BoundTable lists the groups of a repeated stage.
type BoundTable []GroupBound

// ParseBounds parses "1:3,2:4,3:6,4:3" into a BoundTable.
func ParseBounds(s string) (BoundTable, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var table BoundTable
	for _, part := range strings.Split(s, ",") {
		group, blocks, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("bound %q: want GROUP:BLOCKS", part)
		}
		g, err := strconv.Atoi(group)
		if err != nil {
			return nil, fmt.Errorf("bound %q: bad group: %w", part, err)
		}
		b, err := strconv.Atoi(blocks)
		if err != nil {
			return nil, fmt.Errorf("bound %q: bad block count: %w", part, err)
		}
		table = append(table, GroupBound{Group: g, Blocks: b})
	}
	return table, table.Validate()
}

// String formats the table in ParseBounds syntax.
func (t BoundTable) String() string {
	parts := make([]string, len(t))
	for i, gb := range t {
		parts[i] = fmt.Sprintf("%d:%d", gb.Group, gb.Blocks)
	}
	return strings.Join(parts, ",")
}

// Validate rejects negative values and repeated groups.
func (t BoundTable) Validate() error {
	seen := make(map[int]bool, len(t))
	for _, gb := range t {
		if gb.Group < 0 || gb.Blocks < 0 {
			return &MappingError{Kind: KindBadBounds, Details: fmt.Sprintf("negative bound %d:%d", gb.Group, gb.Blocks)}
		}
		if seen[gb.Group] {
			return &MappingError{Kind: KindBadBounds, Details: fmt.Sprintf("group %d listed twice", gb.Group)}
		}
		seen[gb.Group] = true
	}
	return nil
}

// sorted returns a copy ordered by ascending group.
func (t BoundTable) sorted() BoundTable {
	out := make(BoundTable, len(t))
	copy(out, t)
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

// compiledRule and compiledStage hold parsed templates.
type compiledRule struct {
	source template
	key    template
	branch int // index into stage branches, -1 if unconditional
}

type compiledStage struct {
	name     string
	repeated bool
	probes   []template
	branches []string
	rules    []compiledRule
}

type compiledPolicy struct {
	name   string
	cast   tensor.DataType
	doCast bool
	stages []compiledStage
}

// Validate checks templates, branch references, and the cast dtype.
func (p *Policy) Validate() error {
	_, err := p.compile()
	return err
}

func (p *Policy) compile() (*compiledPolicy, error) {
	fail := func(kind ErrorKind, stage, details string) error {
		return &MappingError{Kind: kind, Policy: p.Name, Stage: stage, Details: details}
	}
	if p.Name == "" {
		return nil, fail(KindBadPolicy, "", "policy has no name")
	}
	if p.Version < 1 {
		return nil, fail(KindBadPolicy, "", fmt.Sprintf("version %d (must be >= 1)", p.Version))
	}
	if err := p.Bounds.Validate(); err != nil {
		return nil, err
	}

	cp := &compiledPolicy{name: p.Name}
	if p.Cast != "" {
		dt, err := tensor.ParseDataType(p.Cast)
		if err != nil {
			return nil, fail(KindBadPolicy, "", err.Error())
		}
		cp.cast, cp.doCast = dt, true
	}

	for _, st := range p.Stages {
		cs := compiledStage{name: st.Name, repeated: st.Repeated}
		parse := func(raw string) (template, error) {
			t, err := parseTemplate(raw)
			if err != nil {
				return template{}, fail(KindBadTemplate, st.Name, err.Error())
			}
			if !st.Repeated && t.hasPlaceholders() {
				return template{}, fail(KindBadTemplate, st.Name,
					fmt.Sprintf("placeholder in %q outside a repeated stage", raw))
			}
			return t, nil
		}

		branchIndex := make(map[string]int, len(st.Branches))
		for _, br := range st.Branches {
			if br.Name == "" {
				return nil, fail(KindBadPolicy, st.Name, "branch without a name")
			}
			if _, dup := branchIndex[br.Name]; dup {
				return nil, fail(KindBadPolicy, st.Name, fmt.Sprintf("branch %q declared twice", br.Name))
			}
			probe, err := parse(br.Probe)
			if err != nil {
				return nil, err
			}
			branchIndex[br.Name] = len(cs.probes)
			cs.probes = append(cs.probes, probe)
			cs.branches = append(cs.branches, br.Name)
		}

		for _, r := range st.Rules {
			source, err := parse(r.Source)
			if err != nil {
				return nil, err
			}
			key, err := parse(r.Key)
			if err != nil {
				return nil, err
			}
			cr := compiledRule{source: source, key: key, branch: -1}
			if r.Branch != "" {
				idx, ok := branchIndex[r.Branch]
				if !ok {
					return nil, &MappingError{Kind: KindUnknownBranch, Policy: p.Name, Stage: st.Name,
						Source: r.Source, Details: fmt.Sprintf("branch %q is not declared", r.Branch)}
				}
				cr.branch = idx
			}
			cs.rules = append(cs.rules, cr)
		}
		cp.stages = append(cp.stages, cs)
	}
	return cp, nil
}
