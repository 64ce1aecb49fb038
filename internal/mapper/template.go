package mapper

import (
	"fmt"
	"strconv"
	"strings"
)

// Placeholders recognized in source, key, and probe templates.
const (
	PlaceholderGroup = "group"
	PlaceholderBlock = "block"
)

type segmentKind int

const (
	literalSegment segmentKind = iota
	groupSegment
	blockSegment
)

type segment struct {
	kind segmentKind
	text string
}

// template is a parsed path or key pattern such as "layer{group}.{block}.conv1.weight".
type template struct {
	raw      string
	segments []segment
}

func parseTemplate(raw string) (template, error) {
	if raw == "" {
		return template{}, fmt.Errorf("empty template")
	}
	t := template{raw: raw}
	rest := raw
	for rest != "" {
		open := strings.IndexAny(rest, "{}")
		if open < 0 {
			t.segments = append(t.segments, segment{kind: literalSegment, text: rest})
			break
		}
		if rest[open] == '}' {
			return template{}, fmt.Errorf("unbalanced '}' in %q", raw)
		}
		if open > 0 {
			t.segments = append(t.segments, segment{kind: literalSegment, text: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return template{}, fmt.Errorf("unterminated '{' in %q", raw)
		}
		name := rest[open+1 : open+end]
		switch name {
		case PlaceholderGroup:
			t.segments = append(t.segments, segment{kind: groupSegment})
		case PlaceholderBlock:
			t.segments = append(t.segments, segment{kind: blockSegment})
		default:
			return template{}, fmt.Errorf("unknown placeholder {%s} in %q", name, raw)
		}
		rest = rest[open+end+1:]
	}
	return t, nil
}

// hasPlaceholders reports whether the template depends on group or block.
func (t template) hasPlaceholders() bool {
	for _, s := range t.segments {
		if s.kind != literalSegment {
			return true
		}
	}
	return false
}

// expand substitutes the group and block indices.
func (t template) expand(group, block int) string {
	var sb strings.Builder
	for _, s := range t.segments {
		switch s.kind {
		case literalSegment:
			sb.WriteString(s.text)
		case groupSegment:
			sb.WriteString(strconv.Itoa(group))
		case blockSegment:
			sb.WriteString(strconv.Itoa(block))
		}
	}
	return sb.String()
}

func (t template) String() string {
	return t.raw
}
