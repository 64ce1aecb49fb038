package mapper

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// Preset names.
const (
	ArchitectureLeNet    = "lenet"
	ArchitectureAlexNet  = "alexnet"
	ArchitectureResNet18 = "resnet18"
	ArchitectureResNet34 = "resnet34"
	ArchitectureResNet50 = "resnet50"
)

// Presets returns the names of the built-in policies, sorted.
func Presets() []string {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		panic("mapper: embedded presets unreadable: " + err.Error())
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Preset returns a fresh copy of the named built-in policy.
func Preset(name string) (*Policy, error) {
	data, err := presetFS.ReadFile(path.Join("presets", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown policy preset %q (available: %s)", name, strings.Join(Presets(), ", "))
	}
	p, err := ParsePolicy(data, FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	return p, nil
}
