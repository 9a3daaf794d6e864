package metadata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parseLiteral reads a value in the literal dialect the Python export pipeline
// writes into metadata cells: dicts, lists, tuples, single- or double-quoted
// strings, numbers (including nan and inf), None/null, True/true, False/false.
// Plain JSON is a subset of the grammar, so JSON cells parse too.
func parseLiteral(s string) (any, error) {
	p := &literalParser{src: s}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("trailing data at offset %d", p.pos)
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) value() (any, error) {
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("unexpected end of input")
	}
	switch c := p.src[p.pos]; c {
	case '{':
		return p.dict()
	case '[':
		return p.list('[', ']')
	case '(':
		return p.list('(', ')')
	case '\'', '"':
		return p.str()
	default:
		return p.scalar()
	}
}

func (p *literalParser) dict() (map[string]any, error) {
	p.pos++ // consume '{'
	out := map[string]any{}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		return out, nil
	}
	for {
		p.skipSpace()
		rawKey, err := p.value()
		if err != nil {
			return nil, err
		}
		key, err := dictKey(rawKey)
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return nil, fmt.Errorf("expected ':' at offset %d", p.pos)
		}
		p.pos++
		p.skipSpace()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		out[key] = val

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated dict")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			p.skipSpace()
			// trailing comma
			if p.pos < len(p.src) && p.src[p.pos] == '}' {
				p.pos++
				return out, nil
			}
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, fmt.Errorf("expected ',' or '}' at offset %d", p.pos)
		}
	}
}

func (p *literalParser) list(open, close byte) ([]any, error) {
	p.pos++ // consume opening bracket
	var out []any
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == close {
		p.pos++
		return out, nil
	}
	for {
		p.skipSpace()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, val)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated sequence starting with %q", string(open))
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == close {
				p.pos++
				return out, nil
			}
		case close:
			p.pos++
			return out, nil
		default:
			return nil, fmt.Errorf("expected ',' or %q at offset %d", string(close), p.pos)
		}
	}
}

func (p *literalParser) str() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.src) {
				return "", fmt.Errorf("unterminated escape in string")
			}
			switch e := p.src[p.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				// \' \" \\ and anything else pass through
				b.WriteByte(e)
			}
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("unterminated string")
}

// scalar reads an unquoted token: number, nan/inf, None, booleans.
func (p *literalParser) scalar() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && !isDelimiter(p.src[p.pos]) {
		p.pos++
	}
	token := p.src[start:p.pos]
	if token == "" {
		return nil, fmt.Errorf("unexpected character %q at offset %d", string(p.src[start]), start)
	}

	switch token {
	case "None", "null":
		return nil, nil
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	}

	lower := strings.ToLower(token)
	switch lower {
	case "nan":
		return math.NaN(), nil
	case "inf", "infinity", "+inf", "+infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	}

	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("invalid literal token %q at offset %d", token, start)
}

func isDelimiter(c byte) bool {
	switch c {
	case ',', ':', '}', ']', ')', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// dictKey normalizes dict keys to strings; numeric keys are formatted.
func dictKey(v any) (string, error) {
	switch k := v.(type) {
	case string:
		return k, nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case float64:
		return strconv.FormatFloat(k, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("dict key is %T, expected string or number", v)
	}
}
