package validator

import (
	"fmt"

	"github.com/roach88/typedce/internal/ir"
)

var unknown = ir.ValueType{Kind: ir.Unknown, Heap: ir.NoType}

// moduleFields checks globals and functions.
func (v *validator) moduleFields() {
	names := make(map[string]string)
	claim := func(path, name string) {
		if prev, dup := names[name]; dup {
			v.errorf(path, ErrDuplicateName, "name $%s already used by %s", name, prev)
			return
		}
		names[name] = path
	}

	for i, g := range v.p.Globals {
		path := fmt.Sprintf("globals[%d]", i)
		claim(path, g.Name)
		v.valueType(path, g.Type)
		if g.Mutable {
			v.requireFeature(path, ir.FeatureMutableGlobals, "mutable globals")
		}
		if g.Init == nil {
			v.errorf(path, ErrMissingValue, "global $%s has no initializer", g.Name)
			continue
		}
		if !v.isConstant(g.Init) {
			v.errorf(path, ErrNonConstantInit, "initializer of $%s is not a constant expression", g.Name)
		}
		c := &exprChecker{v: v, path: path + ".init"}
		t, ok := c.check(g.Init)
		if !ok {
			v.errorf(path, ErrMissingValue, "initializer of $%s produces no value", g.Name)
		} else if !v.isSubtype(t, g.Type) {
			v.errorf(path, ErrTypeMismatch, "initializer of $%s has type %s, want %s", g.Name, v.describe(t), v.describe(g.Type))
		}
	}

	for i, f := range v.p.Functions {
		path := fmt.Sprintf("functions[%d]", i)
		claim(path, f.Name)
		v.function(path, f)
	}
}

func (v *validator) function(path string, f *ir.Function) {
	for i, l := range f.Params {
		v.valueType(fmt.Sprintf("%s.params[%d]", path, i), l.Type)
	}
	for i, t := range f.Results {
		v.valueType(fmt.Sprintf("%s.results[%d]", path, i), t)
	}
	for i, l := range f.Locals {
		v.valueType(fmt.Sprintf("%s.locals[%d]", path, i), l.Type)
	}
	if len(f.Results) > 1 {
		v.errorf(path, ErrMultipleResults, "$%s has %d results", f.Name, len(f.Results))
	}

	if f.Sig != ir.NoType {
		sig := v.p.Type(f.Sig)
		switch {
		case sig == nil || sig.Kind != ir.KindFunc:
			v.errorf(path, ErrInvalidTypeRef, "$%s declares a signature that is not a func type", f.Name)
		case !sameTypes(paramTypes(f), sig.Params) || !sameTypes(f.Results, sig.Results):
			v.errorf(path, ErrSignatureClash, "$%s does not match its declared type %s", f.Name, v.typeLabel(f.Sig))
		}
	}

	c := &exprChecker{v: v, fn: f}
	for i, e := range f.Body {
		c.path = fmt.Sprintf("%s.body[%d]", path, i)
		t, hasValue := c.check(e)
		last := i == len(f.Body)-1
		switch {
		case !last && hasValue:
			v.errorf(c.path, ErrUnusedValue, "value of type %s is never used", v.describe(t))
		case last && len(f.Results) == 0 && hasValue:
			v.errorf(c.path, ErrUnusedValue, "$%s has no result but its body produces %s", f.Name, v.describe(t))
		case last && len(f.Results) > 0 && !hasValue:
			v.errorf(c.path, ErrMissingValue, "$%s must produce %s", f.Name, v.describe(f.Results[0]))
		case last && len(f.Results) > 0 && !v.isSubtype(t, f.Results[0]):
			v.errorf(c.path, ErrTypeMismatch, "$%s produces %s, want %s", f.Name, v.describe(t), v.describe(f.Results[0]))
		}
	}
	if len(f.Body) == 0 && len(f.Results) > 0 {
		v.errorf(path, ErrMissingValue, "$%s has an empty body but must produce %s", f.Name, v.describe(f.Results[0]))
	}
}

func paramTypes(f *ir.Function) []ir.ValueType {
	out := make([]ir.ValueType, len(f.Params))
	for i, l := range f.Params {
		out[i] = l.Type
	}
	return out
}

func sameTypes(a, b []ir.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameType(a[i], b[i]) {
			return false
		}
	}
	return true
}

// isConstant reports whether e may initialize a global.
func (v *validator) isConstant(e ir.Expr) bool {
	switch e := e.(type) {
	case *ir.Const, *ir.RefNull, *ir.StructNewDefault:
		return true
	case *ir.GlobalGet:
		g := v.p.Global(e.Name)
		return g != nil && !g.Mutable
	case *ir.StructNew, *ir.ArrayNew, *ir.ArrayNewDefault:
		for _, op := range ir.Operands(e) {
			if !v.isConstant(op) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

type exprChecker struct {
	v    *validator
	fn   *ir.Function // nil inside global initializers
	path string
}

func (c *exprChecker) errorf(code, format string, args ...any) {
	c.v.errorf(c.path, code, format, args...)
}

// value checks e and requires it to produce a subtype of want.
func (c *exprChecker) value(e ir.Expr, want ir.ValueType, what string) {
	t, ok := c.check(e)
	if !ok {
		c.errorf(ErrMissingValue, "%s produces no value", what)
		return
	}
	if !c.v.isSubtype(t, want) {
		c.errorf(ErrTypeMismatch, "%s has type %s, want %s", what, c.v.describe(t), c.v.describe(want))
	}
}

// anyValue checks e and requires it to produce some value.
func (c *exprChecker) anyValue(e ir.Expr, what string) ir.ValueType {
	t, ok := c.check(e)
	if !ok {
		c.errorf(ErrMissingValue, "%s produces no value", what)
		return unknown
	}
	return t
}

// heap resolves a type immediate and checks its kind.
func (c *exprChecker) heap(h ir.HeapType, kind ir.Kind, op string) *ir.TypeDef {
	def := c.v.p.Type(h)
	if def == nil {
		c.errorf(ErrInvalidTypeRef, "%s refers to unknown heap type %d", op, int(h))
		return nil
	}
	if def.Kind != kind {
		c.errorf(ErrInvalidTypeRef, "%s needs a %s type, %s is a %s", op, kind, c.v.typeLabel(h), def.Kind)
		return nil
	}
	return def
}

func (c *exprChecker) gc(op string) {
	if !c.v.p.Features.Has(ir.FeatureGC) {
		c.errorf(ErrFeatureDisabled, "%s requires feature gc", op)
	}
}

func (c *exprChecker) field(def *ir.TypeDef, h ir.HeapType, index int, name, op string) (ir.Field, bool) {
	if index == ir.UnresolvedField {
		c.errorf(ErrUnknownField, "%s: %s has no field $%s", op, c.v.typeLabel(h), name)
		return ir.Field{}, false
	}
	if index < 0 || index >= len(def.Fields) {
		c.errorf(ErrUnknownField, "%s: %s has no field %d", op, c.v.typeLabel(h), index)
		return ir.Field{}, false
	}
	return def.Fields[index], true
}

// check type-checks e and returns its result type, or false if it
// produces no value.
func (c *exprChecker) check(e ir.Expr) (ir.ValueType, bool) {
	switch e := e.(type) {
	case *ir.Const:
		switch e.Type {
		case ir.I32:
			return ir.TypeI32, true
		case ir.I64:
			return ir.TypeI64, true
		case ir.F32:
			return ir.TypeF32, true
		case ir.F64:
			return ir.TypeF64, true
		}
		c.errorf(ErrTypeMismatch, "constant of unknown type")
		return unknown, true

	case *ir.Nop:
		return unknown, false

	case *ir.Drop:
		c.anyValue(e.Value, "drop operand")
		return unknown, false

	case *ir.Binary:
		info, ok := e.Op.Info()
		if !ok {
			c.errorf(ErrTypeMismatch, "unknown binary operator %d", e.Op)
			return unknown, true
		}
		operand := ir.ValueType{Kind: info.Operand, Heap: ir.NoType}
		c.value(e.Left, operand, info.Name+" left operand")
		c.value(e.Right, operand, info.Name+" right operand")
		return ir.ValueType{Kind: info.Result, Heap: ir.NoType}, true

	case *ir.LocalGet, *ir.LocalSet:
		if c.fn == nil {
			c.errorf(ErrUnknownName, "locals are not available outside functions")
			return unknown, true
		}
		if get, ok := e.(*ir.LocalGet); ok {
			t, found := c.fn.LocalType(get.Index)
			if !found {
				c.errorf(ErrUnknownName, "local %d does not exist", get.Index)
				return unknown, true
			}
			return t, true
		}
		set := e.(*ir.LocalSet)
		t, found := c.fn.LocalType(set.Index)
		if !found {
			c.errorf(ErrUnknownName, "local %d does not exist", set.Index)
			t = unknown
		}
		c.value(set.Value, t, "local.set value")
		return unknown, false

	case *ir.GlobalGet:
		g := c.v.p.Global(e.Name)
		if g == nil {
			c.errorf(ErrUnknownName, "global $%s does not exist", e.Name)
			return unknown, true
		}
		return g.Type, true

	case *ir.GlobalSet:
		g := c.v.p.Global(e.Name)
		want := unknown
		switch {
		case g == nil:
			c.errorf(ErrUnknownName, "global $%s does not exist", e.Name)
		case !g.Mutable:
			c.errorf(ErrImmutableGlobal, "global $%s is immutable", e.Name)
			want = g.Type
		default:
			want = g.Type
		}
		c.value(e.Value, want, "global.set value")
		return unknown, false

	case *ir.Call:
		callee := c.v.p.Function(e.Target)
		if callee == nil {
			c.errorf(ErrUnknownName, "function $%s does not exist", e.Target)
			for _, op := range e.Operands {
				c.check(op)
			}
			return unknown, true
		}
		if len(e.Operands) != len(callee.Params) {
			c.errorf(ErrOperandCount, "call $%s: %d operand(s), want %d", e.Target, len(e.Operands), len(callee.Params))
		}
		for i, op := range e.Operands {
			want := unknown
			if i < len(callee.Params) {
				want = callee.Params[i].Type
			}
			c.value(op, want, fmt.Sprintf("call $%s operand %d", e.Target, i))
		}
		if len(callee.Results) == 0 {
			return unknown, false
		}
		return callee.Results[0], true

	case *ir.RefNull:
		c.v.requireFeature(c.path, ir.FeatureReferenceTypes, "ref.null")
		if c.v.p.Type(e.Type) == nil {
			c.errorf(ErrInvalidTypeRef, "ref.null refers to unknown heap type %d", int(e.Type))
			return unknown, true
		}
		return ir.RefType(e.Type, true), true

	case *ir.RefIsNull:
		t := c.anyValue(e.Value, "ref.is_null operand")
		if t.Kind != ir.Unknown && t.Kind != ir.Ref {
			c.errorf(ErrTypeMismatch, "ref.is_null operand has type %s, want a reference", c.v.describe(t))
		}
		return ir.TypeI32, true

	case *ir.StructNew:
		c.gc("struct.new")
		def := c.heap(e.Type, ir.KindStruct, "struct.new")
		if def == nil {
			for _, op := range e.Operands {
				c.check(op)
			}
			return unknown, true
		}
		if len(e.Operands) != len(def.Fields) {
			c.errorf(ErrOperandCount, "struct.new %s: %d operand(s), want %d", c.v.typeLabel(e.Type), len(e.Operands), len(def.Fields))
		}
		for i, op := range e.Operands {
			want := unknown
			if i < len(def.Fields) {
				want = def.Fields[i].Type
			}
			c.value(op, want, fmt.Sprintf("struct.new operand %d", i))
		}
		return ir.RefType(e.Type, false), true

	case *ir.StructNewDefault:
		c.gc("struct.new_default")
		def := c.heap(e.Type, ir.KindStruct, "struct.new_default")
		if def == nil {
			return unknown, true
		}
		for i, f := range def.Fields {
			if !f.Type.Defaultable() {
				c.errorf(ErrNotDefaultable, "struct.new_default %s: field %d has no default value", c.v.typeLabel(e.Type), i)
			}
		}
		return ir.RefType(e.Type, false), true

	case *ir.StructGet:
		c.gc("struct.get")
		def := c.heap(e.Type, ir.KindStruct, "struct.get")
		c.value(e.Ref, ir.RefType(e.Type, true), "struct.get reference")
		if def == nil {
			return unknown, true
		}
		f, ok := c.field(def, e.Type, e.Field, e.FieldName, "struct.get")
		if !ok {
			return unknown, true
		}
		return f.Type, true

	case *ir.StructSet:
		c.gc("struct.set")
		def := c.heap(e.Type, ir.KindStruct, "struct.set")
		c.value(e.Ref, ir.RefType(e.Type, true), "struct.set reference")
		if def == nil {
			c.check(e.Value)
			return unknown, false
		}
		f, ok := c.field(def, e.Type, e.Field, e.FieldName, "struct.set")
		if !ok {
			c.check(e.Value)
			return unknown, false
		}
		if !f.Mutable {
			c.errorf(ErrImmutableField, "struct.set: field %d of %s is immutable", e.Field, c.v.typeLabel(e.Type))
		}
		c.value(e.Value, f.Type, "struct.set value")
		return unknown, false

	case *ir.ArrayNew:
		c.gc("array.new")
		def := c.heap(e.Type, ir.KindArray, "array.new")
		want := unknown
		if def != nil {
			want = def.Elem.Type
		}
		c.value(e.Init, want, "array.new initial value")
		c.value(e.Size, ir.TypeI32, "array.new size")
		if def == nil {
			return unknown, true
		}
		return ir.RefType(e.Type, false), true

	case *ir.ArrayNewDefault:
		c.gc("array.new_default")
		def := c.heap(e.Type, ir.KindArray, "array.new_default")
		c.value(e.Size, ir.TypeI32, "array.new_default size")
		if def == nil {
			return unknown, true
		}
		if !def.Elem.Type.Defaultable() {
			c.errorf(ErrNotDefaultable, "array.new_default %s: element has no default value", c.v.typeLabel(e.Type))
		}
		return ir.RefType(e.Type, false), true

	case *ir.ArrayGet:
		c.gc("array.get")
		def := c.heap(e.Type, ir.KindArray, "array.get")
		c.value(e.Ref, ir.RefType(e.Type, true), "array.get reference")
		c.value(e.Index, ir.TypeI32, "array.get index")
		if def == nil {
			return unknown, true
		}
		return def.Elem.Type, true

	case *ir.ArraySet:
		c.gc("array.set")
		def := c.heap(e.Type, ir.KindArray, "array.set")
		c.value(e.Ref, ir.RefType(e.Type, true), "array.set reference")
		c.value(e.Index, ir.TypeI32, "array.set index")
		want := unknown
		if def != nil {
			want = def.Elem.Type
			if !def.Elem.Mutable {
				c.errorf(ErrImmutableField, "array.set: %s is immutable", c.v.typeLabel(e.Type))
			}
		}
		c.value(e.Value, want, "array.set value")
		return unknown, false

	case *ir.ArrayLen:
		c.gc("array.len")
		t := c.anyValue(e.Ref, "array.len operand")
		if t.Kind == ir.Ref {
			if def := c.v.p.Type(t.Heap); def == nil || def.Kind != ir.KindArray {
				c.errorf(ErrTypeMismatch, "array.len operand has type %s, want an array reference", c.v.describe(t))
			}
		} else if t.Kind != ir.Unknown {
			c.errorf(ErrTypeMismatch, "array.len operand has type %s, want an array reference", c.v.describe(t))
		}
		return ir.TypeI32, true
	}

	c.errorf(ErrTypeMismatch, "unsupported expression %T", e)
	return unknown, true
}
