package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Policy file formats.
const (
	FormatYAML  = "yaml"
	FormatJSONC = "jsonc"
)

// ParsePolicy decodes a policy document and validates it. Unknown fields
// are rejected so that a typo in a rule never silently drops a key.
// JSON input may carry // and /* */ comments and trailing commas.
func ParsePolicy(data []byte, format string) (*Policy, error) {
	var p Policy
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("parsing policy YAML: %w", err)
		}
	case FormatJSONC:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("parsing policy JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown policy format %q", format)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// FormatFromPath infers the policy format from a file extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSONC, nil
	default:
		return "", fmt.Errorf("cannot infer policy format from %q (want .yaml, .yml, .json, or .jsonc)", path)
	}
}

// LoadPolicyFile reads and validates a policy file.
func LoadPolicyFile(path string) (*Policy, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: policy paths are user input by design
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	p, err := ParsePolicy(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
