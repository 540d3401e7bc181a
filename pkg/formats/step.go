package formats

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/Faultbox/ifcmesh/pkg/encoding"
)

// syntaxError describes a position in the document where parsing stopped.
type syntaxError struct {
	Offset int
	Msg    string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Msg)
}

// stepParser is a cursor over ISO-10303-21 text.
type stepParser struct {
	data []byte
	pos  int

	// fieldErrs collects malformed numeric tokens of the record being parsed.
	fieldErrs []string
}

func newStepParser(data []byte) *stepParser {
	p := &stepParser{data: data}
	// UTF-8 byte order mark
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		p.pos = 3
	}
	return p
}

func (p *stepParser) errorf(format string, args ...any) error {
	return &syntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *stepParser) eof() bool {
	return p.pos >= len(p.data)
}

func (p *stepParser) peek() byte {
	if p.pos >= len(p.data) {
		return 0
	}
	return p.data[p.pos]
}

// skipSpace skips whitespace and /* */ comments.
func (p *stepParser) skipSpace() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == '/' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '*':
			end := bytes.Index(p.data[p.pos+2:], []byte("*/"))
			if end < 0 {
				p.pos = len(p.data)
				return
			}
			p.pos += end + 4
		default:
			return
		}
	}
}

// acceptKeyword consumes kw if it is next in the input.
func (p *stepParser) acceptKeyword(kw string) bool {
	p.skipSpace()
	if len(p.data)-p.pos < len(kw) {
		return false
	}
	if !strings.EqualFold(string(p.data[p.pos:p.pos+len(kw)]), kw) {
		return false
	}
	p.pos += len(kw)
	return true
}

func (p *stepParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected %q, found %q", c, p.peek())
	}
	p.pos++
	return nil
}

func isKeywordByte(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-'
}

func (p *stepParser) keyword() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.data) && isKeywordByte(p.data[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return "", p.errorf("expected keyword, found %q", p.peek())
	}
	return strings.ToUpper(string(p.data[start:p.pos])), nil
}

func (p *stepParser) instanceID() (uint32, error) {
	if err := p.expect('#'); err != nil {
		return 0, err
	}
	start := p.pos
	for p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
		p.pos++
	}
	id, err := strconv.ParseUint(string(p.data[start:p.pos]), 10, 32)
	if err != nil || id == 0 {
		return 0, p.errorf("invalid instance id %q", string(p.data[start:p.pos]))
	}
	return uint32(id), nil
}

// params parses a parenthesized, comma-separated attribute list.
func (p *stepParser) params() ([]Value, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	values := []Value{}
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return values, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return values, nil
		default:
			return nil, p.errorf("expected ',' or ')', found %q", p.peek())
		}
	}
}

func (p *stepParser) value() (Value, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '$':
		p.pos++
		return Value{Kind: ValueNull}, nil
	case c == '*':
		p.pos++
		return Value{Kind: ValueDerived}, nil
	case c == '#':
		id, err := p.instanceID()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueRef, Ref: id}, nil
	case c == '\'':
		s, err := p.stringLiteral()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueString, Str: s}, nil
	case c == '"':
		// Binary literal; kept as its hex text.
		p.pos++
		start := p.pos
		for p.pos < len(p.data) && p.data[p.pos] != '"' {
			p.pos++
		}
		if p.eof() {
			return Value{}, p.errorf("unterminated binary literal")
		}
		s := string(p.data[start:p.pos])
		p.pos++
		return Value{Kind: ValueString, Str: s}, nil
	case c == '.':
		return p.enum()
	case c == '(':
		items, err := p.params()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueList, List: items}, nil
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return p.number(), nil
	case (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'):
		name, err := p.keyword()
		if err != nil {
			return Value{}, err
		}
		inner, err := p.params()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueTyped, Str: name, List: inner}, nil
	case c == 0:
		return Value{}, p.errorf("unexpected end of document")
	default:
		return Value{}, p.errorf("unexpected character %q", c)
	}
}

func (p *stepParser) enum() (Value, error) {
	p.pos++ // leading '.'
	start := p.pos
	for p.pos < len(p.data) && isKeywordByte(p.data[p.pos]) {
		p.pos++
	}
	if p.peek() != '.' {
		return Value{}, p.errorf("unterminated enumeration")
	}
	name := strings.ToUpper(string(p.data[start:p.pos]))
	p.pos++
	return Value{Kind: ValueEnum, Str: name}, nil
}

// number lexes a numeric token. A token that does not parse is recorded in
// fieldErrs and yields a null value so the rest of the record survives.
func (p *stepParser) number() Value {
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'E' || c == 'e' {
			p.pos++
			continue
		}
		break
	}
	tok := string(p.data[start:p.pos])

	if !strings.ContainsAny(tok, ".Ee") {
		if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return Value{Kind: ValueInteger, Int: i}
		}
	} else if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return Value{Kind: ValueReal, Real: f}
	}

	p.fieldErrs = append(p.fieldErrs, tok)
	return Value{Kind: ValueNull}
}

func (p *stepParser) stringLiteral() (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated string")
		}
		c := p.data[p.pos]
		if c == '\'' {
			if p.pos+1 < len(p.data) && p.data[p.pos+1] == '\'' {
				b.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return decodeStepString(encoding.LegacyToUTF8([]byte(b.String()))), nil
		}
		b.WriteByte(c)
		p.pos++
	}
}

// skipRecord advances past the next ';' that is not inside a string.
func (p *stepParser) skipRecord() {
	inString := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		switch {
		case c == '\'':
			inString = !inString
		case c == ';' && !inString:
			return
		}
	}
}

// decodeStepString resolves the control directives of ISO-10303-21 strings:
// \X2\...\X0\ (UTF-16), \X4\...\X0\ (UTF-32), \X\hh (ISO-8859-1),
// \S\c (upper half of the code page), \P?\ (code page switch) and \\.
func decodeStepString(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	page := byte(encoding.DefaultPage)
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			i++
			continue
		}
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "\\\\"):
			b.WriteByte('\\')
			i += 2
		case strings.HasPrefix(rest, "\\X2\\"), strings.HasPrefix(rest, "\\X4\\"):
			width := 4
			if rest[2] == '4' {
				width = 8
			}
			end := strings.Index(rest[4:], "\\X0\\")
			if end < 0 {
				b.WriteString(rest)
				return b.String()
			}
			b.WriteString(decodeHexRunes(rest[4:4+end], width))
			i += 4 + end + 4
		case strings.HasPrefix(rest, "\\X\\") && len(rest) >= 5:
			if v, err := strconv.ParseUint(rest[3:5], 16, 8); err == nil {
				b.WriteRune(rune(v))
				i += 5
			} else {
				b.WriteByte('\\')
				i++
			}
		case strings.HasPrefix(rest, "\\S\\") && len(rest) >= 4:
			b.WriteRune(encoding.DecodeHigh(page, rest[3]))
			i += 4
		case len(rest) >= 4 && rest[1] == 'P' && rest[3] == '\\':
			if encoding.ValidPage(rest[2]) {
				page = rest[2]
			}
			i += 4
		default:
			b.WriteByte('\\')
			i++
		}
	}
	return b.String()
}

func decodeHexRunes(hex string, width int) string {
	if width == 8 {
		var b strings.Builder
		for j := 0; j+8 <= len(hex); j += 8 {
			v, err := strconv.ParseUint(hex[j:j+8], 16, 32)
			if err != nil {
				break
			}
			b.WriteRune(rune(v))
		}
		return b.String()
	}
	units := make([]uint16, 0, len(hex)/4)
	for j := 0; j+4 <= len(hex); j += 4 {
		v, err := strconv.ParseUint(hex[j:j+4], 16, 16)
		if err != nil {
			break
		}
		units = append(units, uint16(v))
	}
	return string(utf16.Decode(units))
}
