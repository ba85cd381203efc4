package wat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/sexpr"
)

// SyntaxError reports text that does not describe a program: malformed
// s-expressions, unknown forms, or references to names that do not exist.
// A reference to a missing struct field is not a syntax error; it builds
// and is left for the validator to reject.
type SyntaxError struct {
	Line    int
	Col     int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
	}
	return e.Message
}

func syntaxErrorf(at *sexpr.Element, format string, args ...any) error {
	err := &SyntaxError{Message: fmt.Sprintf(format, args...)}
	if at != nil {
		err.Line, err.Col = at.Line, at.Col
	}
	return err
}

// ParseDocument parses text into its (module ...) element.
func ParseDocument(text string) (*sexpr.Element, error) {
	root, err := sexpr.Parse(text)
	if err != nil {
		if pe, ok := err.(*sexpr.ParseError); ok {
			return nil, &SyntaxError{Line: pe.Line, Col: pe.Col, Message: pe.Message}
		}
		return nil, err
	}
	if root.Len() != 1 || !root.At(0).IsForm("module") {
		return nil, syntaxErrorf(root, "expected a single (module ...) form")
	}
	return root.At(0), nil
}

// Parse parses text and builds a program with the given features.
func Parse(text string, features ir.FeatureSet) (*ir.Program, error) {
	doc, err := ParseDocument(text)
	if err != nil {
		return nil, err
	}
	return Build(doc, features)
}

// Build constructs a program from a (module ...) document. Features are not
// part of the text and must be supplied by the caller.
func Build(module *sexpr.Element, features ir.FeatureSet) (*ir.Program, error) {
	if !module.IsForm("module") {
		return nil, syntaxErrorf(module, "expected (module ...), got %s", module.Head())
	}
	b := &builder{
		p:         ir.NewProgram(features),
		typeIndex: make(map[string]ir.HeapType),
	}

	items := module.Children()[1:]
	if len(items) > 0 {
		if _, named := identifier(items[0]); named {
			items = items[1:]
		}
	}
	var typeDecls, globalDecls, funcDecls []*sexpr.Element
	for _, item := range items {
		switch {
		case item.IsForm("type"):
			typeDecls = append(typeDecls, item)
		case item.IsForm("global"):
			globalDecls = append(globalDecls, item)
		case item.IsForm("func"):
			funcDecls = append(funcDecls, item)
		default:
			return nil, syntaxErrorf(item, "unexpected module field %s", item.String())
		}
	}

	// Allocate handles first so declarations may refer forward.
	for _, decl := range typeDecls {
		h := b.p.AddType(&ir.TypeDef{Super: ir.NoType})
		b.typeOrder = append(b.typeOrder, h)
		if name, ok := declName(decl); ok {
			if _, dup := b.typeIndex[name]; dup {
				return nil, syntaxErrorf(decl.At(1), "duplicate type name $%s", name)
			}
			b.typeIndex[name] = h
			b.p.Names(h).Name = name
		}
	}
	for i, decl := range typeDecls {
		if err := b.typeDecl(b.typeOrder[i], decl); err != nil {
			return nil, err
		}
	}

	for i, decl := range globalDecls {
		name, ok := declName(decl)
		if !ok {
			name = strconv.Itoa(i)
		}
		b.globalNames = append(b.globalNames, name)
	}
	for i, decl := range funcDecls {
		name, ok := declName(decl)
		if !ok {
			name = strconv.Itoa(i)
		}
		b.funcNames = append(b.funcNames, name)
	}
	for i, decl := range globalDecls {
		g, err := b.global(b.globalNames[i], decl)
		if err != nil {
			return nil, err
		}
		b.p.Globals = append(b.p.Globals, g)
	}
	for i, decl := range funcDecls {
		f, err := b.function(b.funcNames[i], decl)
		if err != nil {
			return nil, err
		}
		b.p.Functions = append(b.p.Functions, f)
	}
	return b.p, nil
}

type builder struct {
	p           *ir.Program
	typeIndex   map[string]ir.HeapType
	typeOrder   []ir.HeapType
	globalNames []string
	funcNames   []string
}

// declName returns the $name of (kind $name ...), without the sigil.
func declName(decl *sexpr.Element) (string, bool) {
	if id, ok := identifier(decl.At(1)); ok {
		return id, true
	}
	return "", false
}

func identifier(el *sexpr.Element) (string, bool) {
	if el == nil || el.IsList() || el.IsQuoted() {
		return "", false
	}
	s := el.Str()
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	return ir.NormalizeName(s[1:]), true
}

func index(el *sexpr.Element) (int, bool) {
	if el == nil || el.IsList() || el.IsQuoted() {
		return 0, false
	}
	n, err := strconv.Atoi(el.Str())
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (b *builder) heapRef(el *sexpr.Element) (ir.HeapType, error) {
	if name, ok := identifier(el); ok {
		h, found := b.typeIndex[name]
		if !found {
			return ir.NoType, syntaxErrorf(el, "unknown type $%s", name)
		}
		return h, nil
	}
	if i, ok := index(el); ok {
		if i >= len(b.typeOrder) {
			return ir.NoType, syntaxErrorf(el, "type index %d out of range", i)
		}
		return b.typeOrder[i], nil
	}
	return ir.NoType, syntaxErrorf(el, "expected a type reference")
}

func (b *builder) valueType(el *sexpr.Element) (ir.ValueType, error) {
	if el == nil {
		return ir.ValueType{}, syntaxErrorf(nil, "missing value type")
	}
	if !el.IsList() {
		switch el.Str() {
		case "i32":
			return ir.TypeI32, nil
		case "i64":
			return ir.TypeI64, nil
		case "f32":
			return ir.TypeF32, nil
		case "f64":
			return ir.TypeF64, nil
		}
		return ir.ValueType{}, syntaxErrorf(el, "unknown value type %s", el.Str())
	}
	if !el.IsForm("ref") {
		return ir.ValueType{}, syntaxErrorf(el, "unknown value type %s", el.String())
	}
	switch {
	case el.Len() == 2:
		h, err := b.heapRef(el.At(1))
		return ir.RefType(h, false), err
	case el.Len() == 3 && el.At(1).Str() == "null":
		h, err := b.heapRef(el.At(2))
		return ir.RefType(h, true), err
	}
	return ir.ValueType{}, syntaxErrorf(el, "malformed reference type %s", el.String())
}

func (b *builder) fieldType(el *sexpr.Element) (ir.Field, error) {
	if el != nil && el.IsForm("mut") {
		if el.Len() != 2 {
			return ir.Field{}, syntaxErrorf(el, "malformed (mut ...)")
		}
		v, err := b.valueType(el.At(1))
		return ir.Field{Type: v, Mutable: true}, err
	}
	v, err := b.valueType(el)
	return ir.Field{Type: v}, err
}

func (b *builder) typeDecl(h ir.HeapType, decl *sexpr.Element) error {
	body := decl.At(1)
	if _, named := declName(decl); named {
		body = decl.At(2)
	}
	if body == nil || decl.Len() > 3 || (decl.Len() == 3 && body == decl.At(1)) {
		return syntaxErrorf(decl, "malformed type declaration")
	}
	def := b.p.Types[h]

	if body.IsForm("sub") {
		if body.Len() != 3 {
			return syntaxErrorf(body, "malformed (sub ...)")
		}
		super, err := b.heapRef(body.At(1))
		if err != nil {
			return err
		}
		def.Super = super
		body = body.At(2)
		if !body.IsForm("struct") {
			return syntaxErrorf(body, "(sub ...) must wrap a struct")
		}
	}

	switch {
	case body.IsForm("struct"):
		def.Kind = ir.KindStruct
		names := b.p.Names(h)
		seen := make(map[string]bool)
		for _, fieldDecl := range body.Children()[1:] {
			if !fieldDecl.IsForm("field") {
				return syntaxErrorf(fieldDecl, "expected (field ...)")
			}
			if name, ok := identifier(fieldDecl.At(1)); ok {
				if fieldDecl.Len() != 3 {
					return syntaxErrorf(fieldDecl, "named field takes exactly one type")
				}
				if seen[name] {
					return syntaxErrorf(fieldDecl.At(1), "duplicate field name $%s", name)
				}
				seen[name] = true
				f, err := b.fieldType(fieldDecl.At(2))
				if err != nil {
					return err
				}
				names.FieldNames[len(def.Fields)] = name
				def.Fields = append(def.Fields, f)
				continue
			}
			for _, ft := range fieldDecl.Children()[1:] {
				f, err := b.fieldType(ft)
				if err != nil {
					return err
				}
				def.Fields = append(def.Fields, f)
			}
		}
	case body.IsForm("array"):
		if body.Len() != 2 {
			return syntaxErrorf(body, "malformed (array ...)")
		}
		def.Kind = ir.KindArray
		elem, err := b.fieldType(body.At(1))
		if err != nil {
			return err
		}
		def.Elem = elem
	case body.IsForm("func"):
		def.Kind = ir.KindFunc
		for _, part := range body.Children()[1:] {
			switch {
			case part.IsForm("param"):
				for _, el := range part.Children()[1:] {
					v, err := b.valueType(el)
					if err != nil {
						return err
					}
					def.Params = append(def.Params, v)
				}
			case part.IsForm("result"):
				for _, el := range part.Children()[1:] {
					v, err := b.valueType(el)
					if err != nil {
						return err
					}
					def.Results = append(def.Results, v)
				}
			default:
				return syntaxErrorf(part, "unexpected %s in func type", part.String())
			}
		}
	default:
		return syntaxErrorf(body, "unknown type form %s", body.String())
	}
	return nil
}

func (b *builder) global(name string, decl *sexpr.Element) (*ir.Global, error) {
	rest := decl.Children()[1:]
	if _, named := declName(decl); named {
		rest = rest[1:]
	}
	if len(rest) != 2 {
		return nil, syntaxErrorf(decl, "global takes a type and an initializer")
	}
	g := &ir.Global{Name: name}
	gt := rest[0]
	if gt.IsForm("mut") {
		if gt.Len() != 2 {
			return nil, syntaxErrorf(gt, "malformed (mut ...)")
		}
		g.Mutable = true
		gt = gt.At(1)
	}
	v, err := b.valueType(gt)
	if err != nil {
		return nil, err
	}
	g.Type = v
	g.Init, err = b.expr(rest[1], nil, nil)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (b *builder) function(name string, decl *sexpr.Element) (*ir.Function, error) {
	f := &ir.Function{Name: name, Sig: ir.NoType}
	rest := decl.Children()[1:]
	if _, named := declName(decl); named {
		rest = rest[1:]
	}
	locals := make(map[string]int)
	addLocal := func(list *[]ir.Local, el *sexpr.Element) error {
		if lname, ok := identifier(el.At(1)); ok {
			if el.Len() != 3 {
				return syntaxErrorf(el, "named %s takes exactly one type", el.Head())
			}
			if _, dup := locals[lname]; dup {
				return syntaxErrorf(el.At(1), "duplicate local $%s", lname)
			}
			v, err := b.valueType(el.At(2))
			if err != nil {
				return err
			}
			locals[lname] = len(f.Params) + len(f.Locals)
			*list = append(*list, ir.Local{Name: lname, Type: v})
			return nil
		}
		for _, t := range el.Children()[1:] {
			v, err := b.valueType(t)
			if err != nil {
				return err
			}
			*list = append(*list, ir.Local{Type: v})
		}
		return nil
	}

	i := 0
	if i < len(rest) && rest[i].IsForm("type") {
		if rest[i].Len() != 2 {
			return nil, syntaxErrorf(rest[i], "malformed (type ...) use")
		}
		h, err := b.heapRef(rest[i].At(1))
		if err != nil {
			return nil, err
		}
		f.Sig = h
		i++
	}
	for ; i < len(rest) && rest[i].IsForm("param"); i++ {
		if len(f.Locals) > 0 {
			return nil, syntaxErrorf(rest[i], "param after local")
		}
		if err := addLocal(&f.Params, rest[i]); err != nil {
			return nil, err
		}
	}
	for ; i < len(rest) && rest[i].IsForm("result"); i++ {
		for _, el := range rest[i].Children()[1:] {
			v, err := b.valueType(el)
			if err != nil {
				return nil, err
			}
			f.Results = append(f.Results, v)
		}
	}
	for ; i < len(rest) && rest[i].IsForm("local"); i++ {
		if err := addLocal(&f.Locals, rest[i]); err != nil {
			return nil, err
		}
	}
	for ; i < len(rest); i++ {
		e, err := b.expr(rest[i], f, locals)
		if err != nil {
			return nil, err
		}
		f.Body = append(f.Body, e)
	}
	return f, nil
}

func (b *builder) localRef(el *sexpr.Element, f *ir.Function, locals map[string]int) (int, error) {
	if f == nil {
		return 0, syntaxErrorf(el, "locals are not available here")
	}
	if name, ok := identifier(el); ok {
		i, found := locals[name]
		if !found {
			return 0, syntaxErrorf(el, "unknown local $%s", name)
		}
		return i, nil
	}
	if i, ok := index(el); ok {
		if i >= f.NumLocals() {
			return 0, syntaxErrorf(el, "local index %d out of range", i)
		}
		return i, nil
	}
	return 0, syntaxErrorf(el, "expected a local reference")
}

func (b *builder) namedRef(el *sexpr.Element, names []string, what string) (string, error) {
	if name, ok := identifier(el); ok {
		for _, n := range names {
			if n == name {
				return name, nil
			}
		}
		return "", syntaxErrorf(el, "unknown %s $%s", what, name)
	}
	if i, ok := index(el); ok {
		if i >= len(names) {
			return "", syntaxErrorf(el, "%s index %d out of range", what, i)
		}
		return names[i], nil
	}
	return "", syntaxErrorf(el, "expected a %s reference", what)
}

// fieldRef resolves a field of h. Names that do not resolve are kept for
// the validator instead of failing the build.
func (b *builder) fieldRef(h ir.HeapType, el *sexpr.Element) (int, string, error) {
	if name, ok := identifier(el); ok {
		if def := b.p.Type(h); def.IsStruct() {
			for i, fname := range b.p.Names(h).FieldNames {
				if fname == name && i < len(def.Fields) {
					return i, "", nil
				}
			}
		}
		return ir.UnresolvedField, name, nil
	}
	if i, ok := index(el); ok {
		return i, "", nil
	}
	return 0, "", syntaxErrorf(el, "expected a field reference")
}

func (b *builder) expr(el *sexpr.Element, f *ir.Function, locals map[string]int) (ir.Expr, error) {
	if !el.IsList() || el.Len() == 0 {
		return nil, syntaxErrorf(el, "expected a folded instruction, got %s", el.String())
	}
	op := el.Head()
	args := el.Children()[1:]

	// operands builds the trailing folded operands starting at args[from].
	operands := func(from, want int) ([]ir.Expr, error) {
		if want >= 0 && len(args)-from != want {
			return nil, syntaxErrorf(el, "%s expects %d operand(s), got %d", op, want, len(args)-from)
		}
		if from > len(args) {
			return nil, syntaxErrorf(el, "%s is missing immediates", op)
		}
		out := make([]ir.Expr, 0, len(args)-from)
		for _, a := range args[from:] {
			e, err := b.expr(a, f, locals)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}
	immediate := func(i int) (*sexpr.Element, error) {
		if i >= len(args) {
			return nil, syntaxErrorf(el, "%s is missing immediates", op)
		}
		return args[i], nil
	}

	if bop, ok := ir.LookupBinaryOp(op); ok {
		ops, err := operands(0, 2)
		if err != nil {
			return nil, err
		}
		return &ir.Binary{Op: bop, Left: ops[0], Right: ops[1]}, nil
	}

	switch op {
	case "i32.const", "i64.const", "f32.const", "f64.const":
		lit, err := immediate(0)
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, syntaxErrorf(el, "%s takes one literal", op)
		}
		return constant(op, lit)
	case "nop":
		if len(args) != 0 {
			return nil, syntaxErrorf(el, "nop takes no operands")
		}
		return &ir.Nop{}, nil
	case "drop":
		ops, err := operands(0, 1)
		if err != nil {
			return nil, err
		}
		return &ir.Drop{Value: ops[0]}, nil
	case "local.get", "local.set":
		ref, err := immediate(0)
		if err != nil {
			return nil, err
		}
		idx, err := b.localRef(ref, f, locals)
		if err != nil {
			return nil, err
		}
		if op == "local.get" {
			if _, err := operands(1, 0); err != nil {
				return nil, err
			}
			return &ir.LocalGet{Index: idx}, nil
		}
		ops, err := operands(1, 1)
		if err != nil {
			return nil, err
		}
		return &ir.LocalSet{Index: idx, Value: ops[0]}, nil
	case "global.get", "global.set":
		ref, err := immediate(0)
		if err != nil {
			return nil, err
		}
		name, err := b.namedRef(ref, b.globalNames, "global")
		if err != nil {
			return nil, err
		}
		if op == "global.get" {
			if _, err := operands(1, 0); err != nil {
				return nil, err
			}
			return &ir.GlobalGet{Name: name}, nil
		}
		ops, err := operands(1, 1)
		if err != nil {
			return nil, err
		}
		return &ir.GlobalSet{Name: name, Value: ops[0]}, nil
	case "call":
		ref, err := immediate(0)
		if err != nil {
			return nil, err
		}
		name, err := b.namedRef(ref, b.funcNames, "function")
		if err != nil {
			return nil, err
		}
		ops, err := operands(1, -1)
		if err != nil {
			return nil, err
		}
		return &ir.Call{Target: name, Operands: ops}, nil
	case "ref.is_null":
		ops, err := operands(0, 1)
		if err != nil {
			return nil, err
		}
		return &ir.RefIsNull{Value: ops[0]}, nil
	case "array.len":
		ops, err := operands(0, 1)
		if err != nil {
			return nil, err
		}
		return &ir.ArrayLen{Ref: ops[0]}, nil
	}

	// Everything below takes a type immediate first.
	if !strings.HasPrefix(op, "struct.") && !strings.HasPrefix(op, "array.") && op != "ref.null" {
		return nil, syntaxErrorf(el, "unknown instruction %s", op)
	}
	tref, err := immediate(0)
	if err != nil {
		return nil, err
	}
	h, err := b.heapRef(tref)
	if err != nil {
		return nil, err
	}

	switch op {
	case "ref.null":
		if _, err := operands(1, 0); err != nil {
			return nil, err
		}
		return &ir.RefNull{Type: h}, nil
	case "struct.new":
		ops, err := operands(1, -1)
		if err != nil {
			return nil, err
		}
		return &ir.StructNew{Type: h, Operands: ops}, nil
	case "struct.new_default":
		if _, err := operands(1, 0); err != nil {
			return nil, err
		}
		return &ir.StructNewDefault{Type: h}, nil
	case "struct.get", "struct.set":
		fref, err := immediate(1)
		if err != nil {
			return nil, err
		}
		field, unresolved, err := b.fieldRef(h, fref)
		if err != nil {
			return nil, err
		}
		if op == "struct.get" {
			ops, err := operands(2, 1)
			if err != nil {
				return nil, err
			}
			return &ir.StructGet{Type: h, Field: field, FieldName: unresolved, Ref: ops[0]}, nil
		}
		ops, err := operands(2, 2)
		if err != nil {
			return nil, err
		}
		return &ir.StructSet{Type: h, Field: field, FieldName: unresolved, Ref: ops[0], Value: ops[1]}, nil
	case "array.new":
		ops, err := operands(1, 2)
		if err != nil {
			return nil, err
		}
		return &ir.ArrayNew{Type: h, Init: ops[0], Size: ops[1]}, nil
	case "array.new_default":
		ops, err := operands(1, 1)
		if err != nil {
			return nil, err
		}
		return &ir.ArrayNewDefault{Type: h, Size: ops[0]}, nil
	case "array.get":
		ops, err := operands(1, 2)
		if err != nil {
			return nil, err
		}
		return &ir.ArrayGet{Type: h, Ref: ops[0], Index: ops[1]}, nil
	case "array.set":
		ops, err := operands(1, 3)
		if err != nil {
			return nil, err
		}
		return &ir.ArraySet{Type: h, Ref: ops[0], Index: ops[1], Value: ops[2]}, nil
	}
	return nil, syntaxErrorf(el, "unknown instruction %s", op)
}

func constant(op string, lit *sexpr.Element) (ir.Expr, error) {
	if lit.IsList() || lit.IsQuoted() {
		return nil, syntaxErrorf(lit, "%s takes a numeric literal", op)
	}
	s := strings.ReplaceAll(lit.Str(), "_", "")
	switch op {
	case "i32.const":
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil || v < -1<<31 || v > 1<<32-1 {
			return nil, syntaxErrorf(lit, "invalid i32 literal %s", lit.Str())
		}
		return &ir.Const{Type: ir.I32, Int: int64(int32(v))}, nil
	case "i64.const":
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(s, 0, 64)
			if uerr != nil {
				return nil, syntaxErrorf(lit, "invalid i64 literal %s", lit.Str())
			}
			v = int64(u)
		}
		return &ir.Const{Type: ir.I64, Int: v}, nil
	case "f32.const":
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, syntaxErrorf(lit, "invalid f32 literal %s", lit.Str())
		}
		return &ir.Const{Type: ir.F32, Float: v}, nil
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, syntaxErrorf(lit, "invalid f64 literal %s", lit.Str())
		}
		return &ir.Const{Type: ir.F64, Float: v}, nil
	}
}
