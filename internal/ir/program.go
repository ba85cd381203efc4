package ir

import "sort"

// Program is a full IR unit: a type arena, name tables and the code graph.
//
// A Program is owned by whoever runs passes on it. Passes that replace its
// contents do so wholesale via ClearProgram followed by CopyProgram.
type Program struct {
	Types     []*TypeDef
	TypeNames map[HeapType]*TypeNames
	Globals   []*Global
	Functions []*Function
	Features  FeatureSet
}

// Global is a module-level variable.
type Global struct {
	Name    string
	Type    ValueType
	Mutable bool
	Init    Expr
}

// Local is a named, typed slot of a function (parameter or local).
type Local struct {
	Name string
	Type ValueType
}

// Function is a function definition. Params and Locals share one index
// space, params first.
type Function struct {
	Name    string
	Sig     HeapType // declared signature, NoType if inline only
	Params  []Local
	Results []ValueType
	Locals  []Local
	Body    []Expr
}

// NewProgram returns an empty program with the given features.
func NewProgram(features FeatureSet) *Program {
	return &Program{
		TypeNames: make(map[HeapType]*TypeNames),
		Features:  features,
	}
}

// AddType appends def to the arena and returns its handle.
func (p *Program) AddType(def *TypeDef) HeapType {
	p.Types = append(p.Types, def)
	return HeapType(len(p.Types) - 1)
}

// Type returns the declaration for h, or nil if h is not a valid handle.
func (p *Program) Type(h HeapType) *TypeDef {
	if h < 0 || int(h) >= len(p.Types) {
		return nil
	}
	return p.Types[h]
}

// Names returns the name record for h, creating an empty one if needed.
func (p *Program) Names(h HeapType) *TypeNames {
	if p.TypeNames == nil {
		p.TypeNames = make(map[HeapType]*TypeNames)
	}
	n, ok := p.TypeNames[h]
	if !ok {
		n = &TypeNames{FieldNames: make(map[int]string)}
		p.TypeNames[h] = n
	}
	if n.FieldNames == nil {
		n.FieldNames = make(map[int]string)
	}
	return n
}

// TypeName returns the name of h, or "" if it has none.
func (p *Program) TypeName(h HeapType) string {
	if n, ok := p.TypeNames[h]; ok {
		return n.Name
	}
	return ""
}

// FieldName returns the name of field i of h, or "" if it has none.
func (p *Program) FieldName(h HeapType, i int) string {
	if n, ok := p.TypeNames[h]; ok {
		return n.FieldNames[i]
	}
	return ""
}

// LookupType finds a heap type by name.
func (p *Program) LookupType(name string) (HeapType, bool) {
	for h, n := range p.TypeNames {
		if n.Name == name && p.Type(h) != nil {
			return h, true
		}
	}
	return NoType, false
}

// Global returns the global with the given name, or nil.
func (p *Program) Global(name string) *Global {
	for _, g := range p.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Function returns the function with the given name, or nil.
func (p *Program) Function(name string) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// LocalType returns the type of local index i (params first).
func (f *Function) LocalType(i int) (ValueType, bool) {
	if i < 0 {
		return ValueType{}, false
	}
	if i < len(f.Params) {
		return f.Params[i].Type, true
	}
	i -= len(f.Params)
	if i < len(f.Locals) {
		return f.Locals[i].Type, true
	}
	return ValueType{}, false
}

// LocalName returns the name of local index i, or "".
func (f *Function) LocalName(i int) string {
	if i >= 0 && i < len(f.Params) {
		return f.Params[i].Name
	}
	i -= len(f.Params)
	if i >= 0 && i < len(f.Locals) {
		return f.Locals[i].Name
	}
	return ""
}

// NumLocals returns the size of the combined param/local index space.
func (f *Function) NumLocals() int { return len(f.Params) + len(f.Locals) }

// CollectHeapTypes returns every heap type reachable from the program's
// globals and functions, following type declarations transitively, in
// arena order. The map gives each type's position in the returned slice.
// Types nothing refers to are not included.
func CollectHeapTypes(p *Program) ([]HeapType, map[HeapType]int) {
	seen := make(map[HeapType]bool)
	var work []HeapType
	note := func(h HeapType) {
		if p.Type(h) == nil || seen[h] {
			return
		}
		seen[h] = true
		work = append(work, h)
	}
	noteValue := func(v ValueType) {
		if v.Kind == Ref {
			note(v.Heap)
		}
	}
	noteExpr := func(e Expr) {
		Walk(e, func(e Expr) {
			if h, ok := ExprHeapType(e); ok {
				note(h)
			}
		})
	}

	for _, g := range p.Globals {
		noteValue(g.Type)
		noteExpr(g.Init)
	}
	for _, f := range p.Functions {
		if f.Sig != NoType {
			note(f.Sig)
		}
		for _, l := range f.Params {
			noteValue(l.Type)
		}
		for _, v := range f.Results {
			noteValue(v)
		}
		for _, l := range f.Locals {
			noteValue(l.Type)
		}
		for _, e := range f.Body {
			noteExpr(e)
		}
	}
	for len(work) > 0 {
		h := work[len(work)-1]
		work = work[:len(work)-1]
		for _, child := range p.Types[h].Children() {
			note(child)
		}
	}

	types := make([]HeapType, 0, len(seen))
	for h := range seen {
		types = append(types, h)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	indices := make(map[HeapType]int, len(types))
	for i, h := range types {
		indices[h] = i
	}
	return types, indices
}

// ClearProgram empties p in place. Features are kept.
func ClearProgram(p *Program) {
	p.Types = nil
	p.TypeNames = make(map[HeapType]*TypeNames)
	p.Globals = nil
	p.Functions = nil
}

// CopyProgram deep-copies src into dst. dst should be empty.
func CopyProgram(src, dst *Program) {
	dst.Types = make([]*TypeDef, len(src.Types))
	for i, def := range src.Types {
		dst.Types[i] = def.Clone()
	}
	dst.TypeNames = make(map[HeapType]*TypeNames, len(src.TypeNames))
	for h, n := range src.TypeNames {
		dst.TypeNames[h] = n.Clone()
	}
	dst.Globals = make([]*Global, len(src.Globals))
	for i, g := range src.Globals {
		c := *g
		c.Init = CloneExpr(g.Init)
		dst.Globals[i] = &c
	}
	dst.Functions = make([]*Function, len(src.Functions))
	for i, f := range src.Functions {
		dst.Functions[i] = &Function{
			Name:    f.Name,
			Sig:     f.Sig,
			Params:  append([]Local(nil), f.Params...),
			Results: append([]ValueType(nil), f.Results...),
			Locals:  append([]Local(nil), f.Locals...),
			Body:    cloneExprs(f.Body),
		}
	}
	dst.Features = src.Features
}

// Clone returns a deep copy of p.
func (p *Program) Clone() *Program {
	c := NewProgram(p.Features)
	CopyProgram(p, c)
	return c
}
