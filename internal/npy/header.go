package npy

import (
	"strconv"
	"strings"

	"github.com/born-ml/parity/internal/tensor"
)

// header is the decoded NPY metadata dictionary.
type header struct {
	dtype        tensor.DataType
	shape        tensor.Shape
	fortranOrder bool
}

// descrCodes maps the type code part of a descr (without byte order prefix)
// to a data type. Both the "kind+size" and the single character forms are accepted.
var descrCodes = map[string]tensor.DataType{
	"f2": tensor.Float16, "e": tensor.Float16,
	"f4": tensor.Float32, "f": tensor.Float32,
	"f8": tensor.Float64, "d": tensor.Float64,
	"i1": tensor.Int8, "b": tensor.Int8,
	"i2": tensor.Int16, "h": tensor.Int16,
	"i4": tensor.Int32, "i": tensor.Int32,
	"i8": tensor.Int64, "q": tensor.Int64,
	"u1": tensor.Uint8, "B": tensor.Uint8,
	"u2": tensor.Uint16, "H": tensor.Uint16,
	"u4": tensor.Uint32, "I": tensor.Uint32,
	"u8": tensor.Uint64, "Q": tensor.Uint64,
	"b1": tensor.Bool, "?": tensor.Bool,
}

// descrFor returns the canonical little-endian descr written by Encode.
func descrFor(dt tensor.DataType) string {
	switch dt {
	case tensor.Float16:
		return "<f2"
	case tensor.Float32:
		return "<f4"
	case tensor.Float64:
		return "<f8"
	case tensor.Int8:
		return "|i1"
	case tensor.Int16:
		return "<i2"
	case tensor.Int32:
		return "<i4"
	case tensor.Int64:
		return "<i8"
	case tensor.Uint8:
		return "|u1"
	case tensor.Uint16:
		return "<u2"
	case tensor.Uint32:
		return "<u4"
	case tensor.Uint64:
		return "<u8"
	case tensor.Bool:
		return "|b1"
	default:
		return ""
	}
}

// parseDescr resolves a descr string such as "<f4" or "|u1".
// Big-endian multi-byte descrs are rejected.
func parseDescr(descr string) (tensor.DataType, error) {
	if descr == "" {
		return 0, formatErrorf(ErrInvalidHeader, "empty descr")
	}
	order := byte('=')
	code := descr
	switch descr[0] {
	case '<', '>', '|', '=':
		order = descr[0]
		code = descr[1:]
	}
	dt, ok := descrCodes[code]
	if !ok {
		return 0, formatErrorf(ErrUnsupportedDType, "descr %q", descr)
	}
	if order == '>' && dt.Size() > 1 {
		return 0, formatErrorf(ErrUnsupportedDType, "big-endian descr %q", descr)
	}
	return dt, nil
}

// buildHeader formats the metadata dictionary the way NumPy writes it.
func buildHeader(dt tensor.DataType, shape tensor.Shape, fortranOrder bool) string {
	fo := "False"
	if fortranOrder {
		fo = "True"
	}
	var sb strings.Builder
	sb.WriteString("{'descr': '")
	sb.WriteString(descrFor(dt))
	sb.WriteString("', 'fortran_order': ")
	sb.WriteString(fo)
	sb.WriteString(", 'shape': ")
	sb.WriteString(shape.String())
	sb.WriteString(", }")
	return sb.String()
}

// parseHeader parses the Python dict literal of an NPY header.
func parseHeader(text string) (header, error) {
	p := &dictParser{s: text}
	fields, err := p.parse()
	if err != nil {
		return header{}, err
	}

	var h header
	descr, ok := fields["descr"]
	if !ok || descr.kind != valueString {
		return header{}, formatErrorf(ErrInvalidHeader, "missing descr in %q", text)
	}
	if h.dtype, err = parseDescr(descr.str); err != nil {
		return header{}, err
	}

	fo, ok := fields["fortran_order"]
	if !ok || fo.kind != valueBool {
		return header{}, formatErrorf(ErrInvalidHeader, "missing fortran_order in %q", text)
	}
	h.fortranOrder = fo.boolean

	shape, ok := fields["shape"]
	if !ok || shape.kind != valueTuple {
		return header{}, formatErrorf(ErrInvalidHeader, "missing shape in %q", text)
	}
	h.shape = tensor.Shape(shape.tuple)
	if err := h.shape.Validate(); err != nil {
		return header{}, formatErrorf(ErrInvalidHeader, "%v", err)
	}
	return h, nil
}

type valueKind int

const (
	valueString valueKind = iota
	valueBool
	valueTuple
)

type dictValue struct {
	kind    valueKind
	str     string
	boolean bool
	tuple   []int
}

// dictParser is a scanner for the restricted Python literal grammar NumPy
// emits: a dict of quoted keys mapping to strings, booleans, or int tuples.
type dictParser struct {
	s   string
	pos int
}

func (p *dictParser) fail(msg string) error {
	return formatErrorf(ErrInvalidHeader, "%s at offset %d in %q", msg, p.pos, p.s)
}

func (p *dictParser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *dictParser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *dictParser) parse() (map[string]dictValue, error) {
	if !p.consume('{') {
		return nil, p.fail("expected '{'")
	}
	fields := make(map[string]dictValue)
	for {
		if p.consume('}') {
			break
		}
		key, err := p.parseString()
		if err != nil {
			return nil, err
		}
		if _, dup := fields[key]; dup {
			return nil, p.fail("duplicate key " + strconv.Quote(key))
		}
		if !p.consume(':') {
			return nil, p.fail("expected ':'")
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		fields[key] = v
		if p.consume(',') {
			continue
		}
		if !p.consume('}') {
			return nil, p.fail("expected ',' or '}'")
		}
		break
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, p.fail("trailing characters")
	}
	return fields, nil
}

func (p *dictParser) parseString() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.s) || (p.s[p.pos] != '\'' && p.s[p.pos] != '"') {
		return "", p.fail("expected quoted string")
	}
	quote := p.s[p.pos]
	end := strings.IndexByte(p.s[p.pos+1:], quote)
	if end < 0 {
		return "", p.fail("unterminated string")
	}
	str := p.s[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	return str, nil
}

func (p *dictParser) parseValue() (dictValue, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return dictValue{}, p.fail("expected value")
	}
	switch c := p.s[p.pos]; {
	case c == '\'' || c == '"':
		str, err := p.parseString()
		return dictValue{kind: valueString, str: str}, err
	case c == '(':
		tuple, err := p.parseTuple()
		return dictValue{kind: valueTuple, tuple: tuple}, err
	case strings.HasPrefix(p.s[p.pos:], "True"):
		p.pos += len("True")
		return dictValue{kind: valueBool, boolean: true}, nil
	case strings.HasPrefix(p.s[p.pos:], "False"):
		p.pos += len("False")
		return dictValue{kind: valueBool, boolean: false}, nil
	default:
		return dictValue{}, p.fail("unsupported value")
	}
}

func (p *dictParser) parseTuple() ([]int, error) {
	p.pos++ // '('
	dims := []int{}
	for {
		if p.consume(')') {
			return dims, nil
		}
		p.skipSpace()
		start := p.pos
		for p.pos < len(p.s) && (p.s[p.pos] >= '0' && p.s[p.pos] <= '9' || p.s[p.pos] == '-') {
			p.pos++
		}
		// Python 2 era writers emit longs such as "3L".
		digits := p.s[start:p.pos]
		if p.pos < len(p.s) && p.s[p.pos] == 'L' {
			p.pos++
		}
		d, err := strconv.Atoi(digits)
		if err != nil {
			return nil, p.fail("bad dimension " + strconv.Quote(digits))
		}
		dims = append(dims, d)
		if p.consume(',') {
			continue
		}
		if !p.consume(')') {
			return nil, p.fail("expected ',' or ')'")
		}
		return dims, nil
	}
}
