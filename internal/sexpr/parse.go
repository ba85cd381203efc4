package sexpr

import (
	"fmt"
	"strings"
)

// ParseError is a syntax error in an s-expression document.
type ParseError struct {
	Line    int
	Col     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

// Parse reads every top-level element of text and returns them as the
// children of a synthetic root list.
func Parse(text string) (*Element, error) {
	p := &parser{src: text, line: 1, col: 1}
	root := List()
	root.Line, root.Col = 1, 1
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return root, nil
		}
		el, err := p.element()
		if err != nil {
			return nil, err
		}
		root.Append(el)
	}
}

type parser struct {
	src  string
	pos  int
	line int
	col  int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) advance() {
	if p.src[p.pos] == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	p.pos++
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line, Col: p.col, Message: fmt.Sprintf(format, args...)}
}

// skipSpace skips whitespace, ;; line comments and (; ;) block comments.
func (p *parser) skipSpace() error {
	for !p.eof() {
		c := p.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.advance()
		case strings.HasPrefix(p.src[p.pos:], ";;"):
			for !p.eof() && p.peek() != '\n' {
				p.advance()
			}
		case strings.HasPrefix(p.src[p.pos:], "(;"):
			if err := p.blockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) blockComment() error {
	line, col := p.line, p.col
	depth := 0
	for !p.eof() {
		switch {
		case strings.HasPrefix(p.src[p.pos:], "(;"):
			depth++
			p.advance()
			p.advance()
		case strings.HasPrefix(p.src[p.pos:], ";)"):
			depth--
			p.advance()
			p.advance()
			if depth == 0 {
				return nil
			}
		default:
			p.advance()
		}
	}
	return &ParseError{Line: line, Col: col, Message: "unterminated block comment"}
}

func (p *parser) element() (*Element, error) {
	line, col := p.line, p.col
	switch p.peek() {
	case '(':
		p.advance()
		el := List()
		el.Line, el.Col = line, col
		for {
			if err := p.skipSpace(); err != nil {
				return nil, err
			}
			if p.eof() {
				return nil, &ParseError{Line: line, Col: col, Message: "unclosed list"}
			}
			if p.peek() == ')' {
				p.advance()
				return el, nil
			}
			child, err := p.element()
			if err != nil {
				return nil, err
			}
			el.Append(child)
		}
	case ')':
		return nil, p.errorf("unexpected ')'")
	case '"':
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		el := Quoted(s)
		el.Line, el.Col = line, col
		return el, nil
	default:
		start := p.pos
		for !p.eof() && !isDelimiter(p.peek()) {
			p.advance()
		}
		if p.pos == start {
			return nil, p.errorf("unexpected %q", p.peek())
		}
		el := Atom(p.src[start:p.pos])
		el.Line, el.Col = line, col
		return el, nil
	}
}

func (p *parser) quoted() (string, error) {
	line, col := p.line, p.col
	p.advance() // opening quote
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		switch c {
		case '"':
			p.advance()
			return b.String(), nil
		case '\n':
			return "", p.errorf("newline in string literal")
		case '\\':
			p.advance()
			if p.eof() {
				break
			}
			switch esc := p.peek(); esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '"', '\\', '\'':
				b.WriteByte(esc)
			default:
				return "", p.errorf("unknown escape \\%c", esc)
			}
			p.advance()
		default:
			b.WriteByte(c)
			p.advance()
		}
	}
	return "", &ParseError{Line: line, Col: col, Message: "unterminated string literal"}
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '"', ';':
		return true
	}
	return false
}
