package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Path is one parsed embedded expression: a runtime global root followed by
// field and index accessors.
type Path struct {
	Root      string
	Accessors []Accessor
}

// Accessor is one step of a path: either a field name or an array index.
type Accessor struct {
	Field   string
	Index   int
	IsIndex bool
}

// Segment is one piece of a parsed template string: literal text when Expr
// is nil, otherwise an embedded expression.
type Segment struct {
	Text string
	Expr *Path
}

// Template is a parsed template string.
type Template struct {
	Segments []Segment
}

// ParseError is a malformed embedded expression. It is fatal to the whole
// compilation of the enclosing definition.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template parse error at offset %d: %s", e.Offset, e.Message)
}

// ParseTemplate splits a string into literal and expression segments.
// "{{" produces a literal "{". An unterminated or malformed expression is
// an error.
func ParseTemplate(s string) (*Template, error) {
	var segs []Segment
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			segs = append(segs, Segment{Text: text.String()})
			text.Reset()
		}
	}

	i := 0
	for i < len(s) {
		c := s[i]
		if c != '{' {
			text.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '{' {
			text.WriteByte('{')
			i += 2
			continue
		}
		flush()
		path, next, err := parseExpression(s, i+1)
		if err != nil {
			return nil, err
		}
		segs = append(segs, Segment{Expr: path})
		i = next
	}
	flush()

	return &Template{Segments: segs}, nil
}

// parseExpression parses a path expression starting just after "{" and
// returns the position just after the closing "}".
func parseExpression(s string, start int) (*Path, int, error) {
	p := &parser{src: s, pos: start}

	p.skipSpace()
	root, ok := p.ident()
	if !ok {
		return nil, 0, &ParseError{Offset: p.pos, Message: "expected a global name after '{'"}
	}
	path := &Path{Root: root}

	for {
		p.skipSpace()
		if p.eof() {
			return nil, 0, &ParseError{Offset: start - 1, Message: "unterminated template expression"}
		}
		switch p.src[p.pos] {
		case '}':
			return path, p.pos + 1, nil
		case '.':
			p.pos++
			p.skipSpace()
			field, ok := p.ident()
			if !ok {
				return nil, 0, &ParseError{Offset: p.pos, Message: "expected a field name after '.'"}
			}
			path.Accessors = append(path.Accessors, Accessor{Field: field})
		case '[':
			p.pos++
			acc, err := p.bracketAccessor()
			if err != nil {
				return nil, 0, err
			}
			path.Accessors = append(path.Accessors, acc)
		default:
			return nil, 0, &ParseError{Offset: p.pos, Message: fmt.Sprintf("unexpected character %q in template expression", s[p.pos])}
		}
	}
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) ident() (string, bool) {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '_' || c == '$' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9' && p.pos > start) {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", false
	}
	return p.src[start:p.pos], true
}

// bracketAccessor parses the inside of [...]: an integer index or a quoted
// field name. Called with pos just after '['.
func (p *parser) bracketAccessor() (Accessor, error) {
	p.skipSpace()
	if p.eof() {
		return Accessor{}, &ParseError{Offset: p.pos, Message: "unterminated index accessor"}
	}

	var acc Accessor
	switch c := p.src[p.pos]; {
	case c == '\'' || c == '"':
		quote := c
		p.pos++
		start := p.pos
		for !p.eof() && p.src[p.pos] != quote {
			p.pos++
		}
		if p.eof() {
			return Accessor{}, &ParseError{Offset: start, Message: "unterminated string in index accessor"}
		}
		acc = Accessor{Field: p.src[start:p.pos]}
		p.pos++
	case c >= '0' && c <= '9':
		start := p.pos
		for !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return Accessor{}, &ParseError{Offset: start, Message: "invalid array index"}
		}
		acc = Accessor{Index: n, IsIndex: true}
	default:
		return Accessor{}, &ParseError{Offset: p.pos, Message: "expected a string or integer index"}
	}

	p.skipSpace()
	if p.eof() || p.src[p.pos] != ']' {
		return Accessor{}, &ParseError{Offset: p.pos, Message: "expected ']' to close index accessor"}
	}
	p.pos++
	return acc, nil
}
