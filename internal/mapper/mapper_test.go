package mapper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/parity/internal/tensor"
)

func leaf(v float64) *tensor.Array {
	return tensor.MustFromSlice(tensor.Shape{1}, []float64{v})
}

func addBN(t *testing.T, tree *Tree, prefix string) {
	t.Helper()
	for _, s := range []string{"weight", "bias", "running_mean", "running_var"} {
		require.NoError(t, tree.Insert(prefix+"."+s, leaf(1)))
	}
	require.NoError(t, tree.Insert(prefix+".num_batches_tracked",
		tensor.MustFromSlice(tensor.Shape{}, []int64{100})))
}

// resnetTree builds a torchvision-shaped ResNet state dict. The first block
// of each group listed in downsample carries a shortcut.
func resnetTree(t *testing.T, convs int, bounds BoundTable, downsample ...int) *Tree {
	t.Helper()
	tree := &Tree{}
	require.NoError(t, tree.Insert("conv1.weight", leaf(1)))
	addBN(t, tree, "bn1")
	hasDown := map[int]bool{}
	for _, g := range downsample {
		hasDown[g] = true
	}
	for _, gb := range bounds {
		for b := 0; b < gb.Blocks; b++ {
			prefix := fmt.Sprintf("layer%d.%d", gb.Group, b)
			for c := 1; c <= convs; c++ {
				require.NoError(t, tree.Insert(fmt.Sprintf("%s.conv%d.weight", prefix, c), leaf(float64(c))))
				addBN(t, tree, fmt.Sprintf("%s.bn%d", prefix, c))
			}
			if b == 0 && hasDown[gb.Group] {
				require.NoError(t, tree.Insert(prefix+".downsample.0.weight", leaf(9)))
				addBN(t, tree, prefix+".downsample.1")
			}
		}
	}
	require.NoError(t, tree.Insert("fc.weight", leaf(1)))
	require.NoError(t, tree.Insert("fc.bias", leaf(0)))
	return tree
}

var resnet50Bounds = BoundTable{{1, 3}, {2, 4}, {3, 6}, {4, 3}}

func TestResNet50Preset(t *testing.T) {
	policy, err := Preset(ArchitectureResNet50)
	require.NoError(t, err)

	tree := resnetTree(t, 3, resnet50Bounds, 1, 2, 3, 4)
	set, err := Map(tree, policy, resnet50Bounds)
	require.NoError(t, err)
	assert.Equal(t, 267, set.Len())

	keys := set.Keys()
	assert.Equal(t, "conv1_w", keys[0])
	assert.Equal(t, []string{"bn1_w", "bn1_b", "bn1_rm", "bn1_rv"}, keys[1:5])
	assert.Equal(t, "layer1_0_conv1_w", keys[5])
	assert.Equal(t, []string{"fc_w", "fc_b"}, keys[len(keys)-2:])
	assert.True(t, set.Has("layer4_0_down_conv_w"))
	assert.True(t, set.Has("layer3_0_down_bn_rv"))
	assert.False(t, set.Has("layer3_1_down_conv_w"))

	// Cast to float32 is applied to every emitted array.
	a, _ := set.Get("layer2_3_bn3_rm")
	assert.Equal(t, tensor.Float32, a.DType())
}

func TestDefaultBounds(t *testing.T) {
	policy, err := Preset(ArchitectureResNet50)
	require.NoError(t, err)
	tree := resnetTree(t, 3, resnet50Bounds, 1, 2, 3, 4)

	withDefaults, err := Map(tree, policy, nil)
	require.NoError(t, err)
	explicit, err := Map(tree, policy, resnet50Bounds)
	require.NoError(t, err)
	assert.Equal(t, explicit.Keys(), withDefaults.Keys())
}

func TestOrderGroupThenBlockThenRule(t *testing.T) {
	policy, err := Preset(ArchitectureResNet18)
	require.NoError(t, err)
	bounds := BoundTable{{2, 2}, {1, 2}, {3, 2}, {4, 2}} // out of order on purpose
	tree := resnetTree(t, 2, bounds, 2, 3, 4)

	set, err := Map(tree, policy, bounds)
	require.NoError(t, err)
	keys := set.Keys()
	// stem(5) then layer1 block 0 (10 keys), layer1 block 1, layer2 block 0 ...
	assert.Equal(t, "layer1_0_conv1_w", keys[5])
	assert.Equal(t, "layer1_1_conv1_w", keys[15])
	assert.Equal(t, "layer2_0_conv1_w", keys[25])
	assert.Equal(t, "layer2_0_down_conv_w", keys[35])
	assert.Equal(t, 5+8*10+3*5+2, set.Len())
}

func TestOptionalBranchAbsentIsNotError(t *testing.T) {
	policy, err := Preset(ArchitectureResNet50)
	require.NoError(t, err)
	tree := resnetTree(t, 3, resnet50Bounds) // no shortcuts anywhere

	set, err := Map(tree, policy, resnet50Bounds)
	require.NoError(t, err)
	assert.Equal(t, 267-20, set.Len())
}

func TestOptionalBranchPartiallyPresentFails(t *testing.T) {
	policy, err := Preset(ArchitectureResNet50)
	require.NoError(t, err)
	tree := resnetTree(t, 3, resnet50Bounds)
	// Probe exists but the batch norm half of the shortcut does not.
	require.NoError(t, tree.Insert("layer2.0.downsample.0.weight", leaf(1)))

	_, err = Map(tree, policy, resnet50Bounds)
	var me *MappingError
	require.True(t, errors.As(err, &me), "got %v", err)
	assert.Equal(t, KindMissingSource, me.Kind)
	assert.Equal(t, "layer2.0.downsample.1.weight", me.Source)
	assert.Equal(t, "layers", me.Stage)
}

func TestMissingRequiredSource(t *testing.T) {
	policy, err := Preset(ArchitectureAlexNet)
	require.NoError(t, err)

	tree := &Tree{}
	for _, p := range []string{"features.0.weight", "features.0.bias"} {
		require.NoError(t, tree.Insert(p, leaf(1)))
	}
	set, err := Map(tree, policy, nil)
	assert.Nil(t, set)
	assert.True(t, IsKind(err, KindMissingSource))
	assert.Contains(t, err.Error(), "features.3.weight")
}

func TestCollision(t *testing.T) {
	policy := &Policy{
		Name:    "broken",
		Version: 1,
		Stages: []Stage{{
			Name: "head",
			Rules: []Rule{
				{Source: "fc.weight", Key: "fc"},
				{Source: "fc.bias", Key: "fc"},
			},
		}},
	}
	tree := &Tree{}
	require.NoError(t, tree.Insert("fc.weight", leaf(1)))
	require.NoError(t, tree.Insert("fc.bias", leaf(2)))

	_, err := Map(tree, policy, nil)
	var me *MappingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, KindCollision, me.Kind)
	assert.Equal(t, "fc.weight", me.Source)
	assert.Equal(t, "fc.bias", me.Other)
	assert.Equal(t, "fc", me.Key)
}

func TestRepeatedKeyWithoutPlaceholdersCollides(t *testing.T) {
	policy := &Policy{
		Name:    "flat",
		Version: 1,
		Stages: []Stage{{
			Name:     "blocks",
			Repeated: true,
			Rules:    []Rule{{Source: "layer{group}.{block}.w", Key: "w"}},
		}},
	}
	tree := &Tree{}
	require.NoError(t, tree.Insert("layer1.0.w", leaf(1)))
	require.NoError(t, tree.Insert("layer1.1.w", leaf(1)))

	_, err := Map(tree, policy, BoundTable{{1, 2}})
	assert.True(t, IsKind(err, KindCollision))
}

func TestPolicyValidation(t *testing.T) {
	stage := func(repeated bool, rules ...Rule) *Policy {
		return &Policy{Name: "p", Version: 1, Stages: []Stage{{
			Name: "s", Repeated: repeated, Rules: rules,
			Branches: []Branch{{Name: "down", Probe: "x{group}.{block}.d"}},
		}}}
	}
	tests := []struct {
		name   string
		policy *Policy
		kind   ErrorKind
	}{
		{"placeholder outside repeated", &Policy{Name: "p", Version: 1, Stages: []Stage{{
			Name: "stem", Rules: []Rule{{Source: "a{group}", Key: "k"}},
		}}}, KindBadTemplate},
		{"unknown placeholder", stage(true, Rule{Source: "a{layer}", Key: "k"}), KindBadTemplate},
		{"unterminated", stage(true, Rule{Source: "a{group", Key: "k"}), KindBadTemplate},
		{"stray brace", stage(true, Rule{Source: "a}", Key: "k"}), KindBadTemplate},
		{"empty key", stage(true, Rule{Source: "a", Key: ""}), KindBadTemplate},
		{"unknown branch", stage(true, Rule{Source: "a", Key: "k", Branch: "shortcut"}), KindUnknownBranch},
		{"bad cast", &Policy{Name: "p", Version: 1, Cast: "complex64"}, KindBadPolicy},
		{"no version", &Policy{Name: "p"}, KindBadPolicy},
		{"bad bounds", &Policy{Name: "p", Version: 1, Bounds: BoundTable{{1, 2}, {1, 3}}}, KindBadBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			assert.True(t, IsKind(err, tt.kind), "want %s, got %v", tt.kind, err)
		})
	}
}

func TestMissingBounds(t *testing.T) {
	policy := &Policy{Name: "p", Version: 1, Stages: []Stage{{
		Name: "blocks", Repeated: true,
		Rules: []Rule{{Source: "l{group}.{block}.w", Key: "l{group}_{block}_w"}},
	}}}
	_, err := Map(&Tree{}, policy, nil)
	assert.True(t, IsKind(err, KindMissingBounds))
}

func TestMapIsDeterministic(t *testing.T) {
	policy, err := Preset(ArchitectureResNet34)
	require.NoError(t, err)
	tree := resnetTree(t, 2, resnet50Bounds, 2, 3, 4)

	first, err := Map(tree, policy, nil)
	require.NoError(t, err)
	second, err := Map(tree, policy, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Keys(), second.Keys())

	// Every key maps back to a path that existed in the tree.
	bindings, err := Plan(tree, policy, nil)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, b := range bindings {
		assert.True(t, tree.Has(b.Source), b.Source)
		assert.False(t, seen[b.Key], "duplicate key %s", b.Key)
		seen[b.Key] = true
	}
}

func TestUnmapped(t *testing.T) {
	policy, err := Preset(ArchitectureResNet18)
	require.NoError(t, err)
	tree := resnetTree(t, 2, BoundTable{{1, 2}, {2, 2}, {3, 2}, {4, 2}}, 2, 3, 4)

	rest, err := Unmapped(tree, policy, nil)
	require.NoError(t, err)
	// One num_batches_tracked per batch norm: stem + 8 blocks x 2 + 3 shortcuts.
	assert.Len(t, rest, 1+16+3)
	assert.Equal(t, "bn1.num_batches_tracked", rest[0])
}

func TestTreeInsertRules(t *testing.T) {
	tree := &Tree{}
	require.NoError(t, tree.Insert("a.b.c", leaf(1)))

	var dup *tensor.DuplicateKeyError
	assert.True(t, errors.As(tree.Insert("a.b.c", leaf(2)), &dup))
	assert.Error(t, tree.Insert("a.b", leaf(2)), "interior node cannot become a leaf")
	assert.Error(t, tree.Insert("a.b.c.d", leaf(2)), "leaf cannot gain children")
	assert.Error(t, tree.Insert("a..d", leaf(2)))
	assert.Error(t, tree.Insert("x", nil))

	assert.True(t, tree.Has("a.b.c"))
	assert.False(t, tree.Has("a.b"))
	assert.True(t, tree.HasNode("a.b"))
	assert.Equal(t, []string{"a.b.c"}, tree.Paths())
}

func TestNewTreeFromSet(t *testing.T) {
	set := tensor.NewSet()
	set.MustAdd("conv1.weight", leaf(1))
	set.MustAdd("conv1.weight.extra", leaf(2))
	_, err := NewTree(set)
	assert.Error(t, err)
}

func TestParseBounds(t *testing.T) {
	b, err := ParseBounds("1:3, 2:4,3:6,4:3")
	require.NoError(t, err)
	assert.Equal(t, resnet50Bounds, b)
	assert.Equal(t, "1:3,2:4,3:6,4:3", b.String())

	empty, err := ParseBounds("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	for _, bad := range []string{"1", "a:3", "1:b", "1:3,1:4", "1:-1"} {
		_, err := ParseBounds(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadPolicyFormats(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "tiny.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
name: tiny
version: 2
stages:
  - name: head
    rules:
      - {source: fc.weight, key: fc_w}
`), 0o644))

	jsoncPath := filepath.Join(dir, "tiny.jsonc")
	require.NoError(t, os.WriteFile(jsoncPath, []byte(`{
  // same policy, JSON with comments
  "name": "tiny",
  "version": 2,
  "stages": [
    {"name": "head", "rules": [{"source": "fc.weight", "key": "fc_w"},]},
  ],
}`), 0o644))

	fromYAML, err := LoadPolicyFile(yamlPath)
	require.NoError(t, err)
	fromJSON, err := LoadPolicyFile(jsoncPath)
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromJSON)
	assert.Equal(t, 2, fromYAML.Version)

	typo := filepath.Join(dir, "typo.yaml")
	require.NoError(t, os.WriteFile(typo, []byte("name: t\nversion: 1\nstagez: []\n"), 0o644))
	_, err = LoadPolicyFile(typo)
	assert.Error(t, err)

	_, err = LoadPolicyFile(filepath.Join(dir, "policy.toml"))
	assert.Error(t, err)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"alexnet", "lenet", "resnet18", "resnet34", "resnet50"}, Presets())
	for _, name := range Presets() {
		p, err := Preset(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name)
	}
	_, err := Preset("vgg16")
	assert.Error(t, err)
}

func TestWeightMapper(t *testing.T) {
	m := GetMapper(ArchitectureResNet50)
	require.NotNil(t, m)
	assert.Equal(t, "resnet50", m.Architecture())

	key, err := m.MapName("layer3.5.bn2.running_var")
	require.NoError(t, err)
	assert.Equal(t, "layer3_5_bn2_rv", key)

	key, err = m.MapName("layer2.0.downsample.1.bias")
	require.NoError(t, err)
	assert.Equal(t, "layer2_0_down_bn_b", key)

	_, err = m.MapName("layer9.0.conv1.weight")
	assert.ErrorIs(t, err, ErrNoRule)

	assert.Nil(t, GetMapper("vgg16"))
}

func TestDetectArchitecture(t *testing.T) {
	tests := []struct {
		name string
		tree *Tree
		want string
	}{
		{"resnet50", resnetTree(t, 3, resnet50Bounds, 1, 2, 3, 4), ArchitectureResNet50},
		{"resnet34", resnetTree(t, 2, resnet50Bounds, 2, 3, 4), ArchitectureResNet34},
		{"resnet18", resnetTree(t, 2, BoundTable{{1, 2}, {2, 2}, {3, 2}, {4, 2}}, 2, 3, 4), ArchitectureResNet18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectArchitecture(tt.tree.Paths()))
		})
	}

	lenet := []string{"conv1.weight", "conv1.bias", "conv2.weight", "conv2.bias",
		"fc1.weight", "fc1.bias", "fc2.weight", "fc2.bias", "fc3.weight", "fc3.bias"}
	assert.Equal(t, ArchitectureLeNet, DetectArchitecture(lenet))
	assert.Equal(t, "", DetectArchitecture([]string{"embed.weight"}))
}
