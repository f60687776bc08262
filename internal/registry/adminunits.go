package registry

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cskoven/go-flood-panel/internal/models"
)

// The registry encodes its admin-unit matches as a Python-literal list of
// dicts, e.g.
//
//	[{'adm1_code': 825, 'adm1_name': 'Ontario'}, {'adm2_code': 12}]
//
// with single- or double-quoted strings and None for absent values. This
// file is a small scanner for exactly that shape. Anything else is a parse
// error; per the error taxonomy the caller drops the record and moves on.

const unitNotAvailable = "Administrative unit not available"

// ParseAdminUnits parses the Admin Units cell into resolved unit entries.
// Placeholder names are blanked, matching the upstream convention.
func ParseAdminUnits(raw string) ([]models.AdminUnit, error) {
	p := &unitParser{s: raw}
	p.skipSpace()
	list, err := p.parseList()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("trailing data at offset %d", p.pos)
	}

	units := make([]models.AdminUnit, 0, len(list))
	for _, dict := range list {
		var u models.AdminUnit
		for key, val := range dict {
			switch key {
			case "adm1_code":
				u.Adm1Code = val.asInt()
			case "adm1_name":
				u.Adm1Name = val.asName()
			case "adm2_code":
				u.Adm2Code = val.asInt()
			case "adm2_name":
				u.Adm2Name = val.asName()
			}
		}
		units = append(units, u)
	}
	return units, nil
}

type unitValue struct {
	str   string
	num   int
	isStr bool
	none  bool
}

func (v unitValue) asInt() int {
	if v.none || v.isStr {
		return 0
	}
	return v.num
}

func (v unitValue) asName() string {
	if v.none || !v.isStr || v.str == unitNotAvailable {
		return ""
	}
	return v.str
}

type unitParser struct {
	s   string
	pos int
}

func (p *unitParser) skipSpace() {
	for p.pos < len(p.s) && unicode.IsSpace(rune(p.s[p.pos])) {
		p.pos++
	}
}

func (p *unitParser) expect(c byte) error {
	if p.pos >= len(p.s) || p.s[p.pos] != c {
		return fmt.Errorf("expected %q at offset %d", string(c), p.pos)
	}
	p.pos++
	return nil
}

func (p *unitParser) peek() (byte, bool) {
	if p.pos >= len(p.s) {
		return 0, false
	}
	return p.s[p.pos], true
}

func (p *unitParser) parseList() ([]map[string]unitValue, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	var out []map[string]unitValue
	p.skipSpace()
	if c, ok := p.peek(); ok && c == ']' {
		p.pos++
		return out, nil
	}
	for {
		p.skipSpace()
		dict, err := p.parseDict()
		if err != nil {
			return nil, err
		}
		out = append(out, dict)
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated list")
		}
		p.pos++
		if c == ']' {
			return out, nil
		}
		if c != ',' {
			return nil, fmt.Errorf("expected ',' or ']' at offset %d", p.pos-1)
		}
	}
}

func (p *unitParser) parseDict() (map[string]unitValue, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	dict := make(map[string]unitValue)
	p.skipSpace()
	if c, ok := p.peek(); ok && c == '}' {
		p.pos++
		return dict, nil
	}
	for {
		p.skipSpace()
		key, err := p.parseString()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		p.skipSpace()
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		dict[key] = val
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated dict")
		}
		p.pos++
		if c == '}' {
			return dict, nil
		}
		if c != ',' {
			return nil, fmt.Errorf("expected ',' or '}' at offset %d", p.pos-1)
		}
	}
}

func (p *unitParser) parseValue() (unitValue, error) {
	c, ok := p.peek()
	if !ok {
		return unitValue{}, fmt.Errorf("unexpected end of input")
	}
	switch {
	case c == '\'' || c == '"':
		s, err := p.parseString()
		if err != nil {
			return unitValue{}, err
		}
		return unitValue{str: s, isStr: true}, nil
	case strings.HasPrefix(p.s[p.pos:], "None"):
		p.pos += len("None")
		return unitValue{none: true}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		start := p.pos
		p.pos++
		for p.pos < len(p.s) && (p.s[p.pos] >= '0' && p.s[p.pos] <= '9' || p.s[p.pos] == '.') {
			p.pos++
		}
		lit := p.s[start:p.pos]
		if strings.Contains(lit, ".") {
			f, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return unitValue{}, fmt.Errorf("bad number %q at offset %d", lit, start)
			}
			return unitValue{num: int(f)}, nil
		}
		n, err := strconv.Atoi(lit)
		if err != nil {
			return unitValue{}, fmt.Errorf("bad number %q at offset %d", lit, start)
		}
		return unitValue{num: n}, nil
	default:
		return unitValue{}, fmt.Errorf("unexpected character %q at offset %d", string(c), p.pos)
	}
}

func (p *unitParser) parseString() (string, error) {
	quote, ok := p.peek()
	if !ok || (quote != '\'' && quote != '"') {
		return "", fmt.Errorf("expected string at offset %d", p.pos)
	}
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch c {
		case quote:
			p.pos++
			return sb.String(), nil
		case '\\':
			if p.pos+1 >= len(p.s) {
				return "", fmt.Errorf("dangling escape at offset %d", p.pos)
			}
			p.pos++
			sb.WriteByte(p.s[p.pos])
			p.pos++
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("unterminated string starting before offset %d", p.pos)
}
