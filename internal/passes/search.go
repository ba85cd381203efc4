package passes

import (
	"sort"

	"github.com/roach88/typedce/internal/sexpr"
)

// Candidate is one speculative removal: the field it targets and the edited
// document with that field's declaration deleted.
type Candidate struct {
	TypeName   string
	FieldIndex int
	FieldName  string // "" for unnamed fields
	Document   *sexpr.Element
}

// structDecl is an eligible (type $name (struct ...)) declaration.
type structDecl struct {
	name   string
	decl   int // child index of the declaration in the module
	fields []fieldSlot
}

// fieldSlot locates one field inside a struct form. A (field i32 i64)
// shorthand holds several slots in one element.
type fieldSlot struct {
	elem  int // child index of the (field ...) element in the struct form
	atom  int // child index of the type inside that element
	count int // number of types declared by that element
	name  string
}

// Search finds the first struct field at or after cur and returns a copy of
// doc with that field declaration removed, together with the cursor pointing
// at the candidate. Types are visited in name order starting from cur.Type;
// a type other than cur.Type starts at field 0. A type whose fields are all
// behind the cursor is skipped. doc is not modified. It reports false when
// nothing is left to try.
func Search(doc *sexpr.Element, cur Cursor) (Candidate, Cursor, bool) {
	decls := structDecls(doc)
	sort.SliceStable(decls, func(i, j int) bool { return decls[i].name < decls[j].name })

	for _, d := range decls {
		if d.name < cur.Type {
			continue
		}
		field := 0
		if d.name == cur.Type {
			field = cur.Field
		}
		if field < 0 || field >= len(d.fields) {
			continue
		}

		edited := doc.Clone()
		removeField(structForm(edited.At(d.decl)), d.fields[field])
		cand := Candidate{
			TypeName:   d.name,
			FieldIndex: field,
			FieldName:  d.fields[field].name,
			Document:   edited,
		}
		return cand, Cursor{Type: d.name, Field: field}, true
	}
	return Candidate{}, cur, false
}

func structDecls(doc *sexpr.Element) []structDecl {
	var out []structDecl
	for i, child := range doc.Children() {
		if i == 0 || !child.IsForm("type") {
			continue
		}
		name, ok := dollarName(child.At(1))
		if !ok {
			continue
		}
		form := structForm(child)
		if form == nil {
			continue
		}
		out = append(out, structDecl{name: name, decl: i, fields: fieldSlots(form)})
	}
	return out
}

// structForm returns the (struct ...) form of a named type declaration,
// looking through a (sub $S ...) wrapper, or nil for other kinds.
func structForm(decl *sexpr.Element) *sexpr.Element {
	body := decl.At(2)
	if body == nil {
		return nil
	}
	if body.IsForm("sub") {
		body = body.At(body.Len() - 1)
	}
	if body == nil || !body.IsForm("struct") {
		return nil
	}
	return body
}

func fieldSlots(form *sexpr.Element) []fieldSlot {
	var slots []fieldSlot
	for i, el := range form.Children() {
		if i == 0 || !el.IsForm("field") {
			continue
		}
		if name, ok := dollarName(el.At(1)); ok {
			slots = append(slots, fieldSlot{elem: i, atom: 2, count: 1, name: name})
			continue
		}
		n := el.Len() - 1
		for j := 1; j <= n; j++ {
			slots = append(slots, fieldSlot{elem: i, atom: j, count: n})
		}
	}
	return slots
}

func removeField(form *sexpr.Element, slot fieldSlot) {
	if slot.count == 1 {
		form.RemoveAt(slot.elem)
		return
	}
	form.At(slot.elem).RemoveAt(slot.atom)
}

func dollarName(el *sexpr.Element) (string, bool) {
	if el == nil || el.IsList() || el.IsQuoted() {
		return "", false
	}
	s := el.Str()
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	return s[1:], true
}
