// Package sexpr parses and prints generic s-expression documents: nested,
// ordered lists of atoms. Documents are not type-checked; they are the
// editable intermediate form between a printed snapshot and a rebuilt program.
package sexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// Element is a list or an atom. Quoted atoms are string literals.
type Element struct {
	list   []*Element
	isList bool

	atom   string
	quoted bool

	Line int
	Col  int
}

// List returns a list element holding children.
func List(children ...*Element) *Element {
	return &Element{list: children, isList: true}
}

// Atom returns an unquoted atom.
func Atom(s string) *Element {
	return &Element{atom: s}
}

// Quoted returns a string literal atom.
func Quoted(s string) *Element {
	return &Element{atom: s, quoted: true}
}

// IsList reports whether e is a list.
func (e *Element) IsList() bool { return e.isList }

// IsQuoted reports whether e is a string literal atom.
func (e *Element) IsQuoted() bool { return !e.isList && e.quoted }

// Len returns the number of children of a list (0 for atoms).
func (e *Element) Len() int { return len(e.list) }

// At returns child i, or nil if out of range or e is an atom.
func (e *Element) At(i int) *Element {
	if i < 0 || i >= len(e.list) {
		return nil
	}
	return e.list[i]
}

// Children returns the children of a list. The slice must not be modified.
func (e *Element) Children() []*Element { return e.list }

// Str returns the text of an atom, or "" for lists.
func (e *Element) Str() string {
	if e.isList {
		return ""
	}
	return e.atom
}

// Head returns the first atom of a list, e.g. "type" for (type $A ...).
func (e *Element) Head() string {
	if !e.isList || len(e.list) == 0 {
		return ""
	}
	return e.list[0].Str()
}

// IsForm reports whether e is a list whose head atom is name.
func (e *Element) IsForm(name string) bool {
	return e.isList && len(e.list) > 0 && !e.list[0].isList && !e.list[0].quoted && e.list[0].atom == name
}

// Append adds children to a list.
func (e *Element) Append(children ...*Element) {
	e.list = append(e.list, children...)
}

// RemoveAt deletes child i of a list.
func (e *Element) RemoveAt(i int) {
	e.list = append(e.list[:i:i], e.list[i+1:]...)
}

// Clone returns a deep copy of e.
func (e *Element) Clone() *Element {
	c := *e
	if e.isList {
		c.list = make([]*Element, len(e.list))
		for i, child := range e.list {
			c.list[i] = child.Clone()
		}
	}
	return &c
}

// Pos returns "line:col" for diagnostics.
func (e *Element) Pos() string {
	return fmt.Sprintf("%d:%d", e.Line, e.Col)
}

// String renders e on a single line.
func (e *Element) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Element) write(b *strings.Builder) {
	if !e.isList {
		if e.quoted {
			b.WriteString(strconv.Quote(e.atom))
		} else {
			b.WriteString(e.atom)
		}
		return
	}
	b.WriteByte('(')
	for i, child := range e.list {
		if i > 0 {
			b.WriteByte(' ')
		}
		child.write(b)
	}
	b.WriteByte(')')
}

// Format renders e with one child per line at the first nesting level,
// which is the layout used for module dumps.
func (e *Element) Format() string {
	if !e.isList || len(e.list) == 0 {
		return e.String()
	}
	var b strings.Builder
	b.WriteByte('(')
	e.list[0].write(&b)
	for _, child := range e.list[1:] {
		b.WriteString("\n ")
		child.write(&b)
	}
	b.WriteString("\n)")
	return b.String()
}
