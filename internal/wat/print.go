package wat

import (
	"strconv"
	"strings"

	"github.com/roach88/typedce/internal/ir"
)

// Print renders p to text.
func Print(p *ir.Program) string {
	types, indices := ir.CollectHeapTypes(p)
	pr := &printer{p: p, indices: indices}

	var b strings.Builder
	b.WriteString("(module\n")
	for _, h := range types {
		b.WriteString(" (type")
		if name := p.TypeName(h); name != "" {
			b.WriteString(" $" + name)
		}
		b.WriteString(" " + pr.typeDef(h) + ")\n")
	}
	for _, g := range p.Globals {
		b.WriteString(" (global $" + g.Name + " ")
		if g.Mutable {
			b.WriteString("(mut " + pr.valueType(g.Type) + ")")
		} else {
			b.WriteString(pr.valueType(g.Type))
		}
		b.WriteString(" " + pr.expr(g.Init, nil) + ")\n")
	}
	for _, f := range p.Functions {
		pr.function(&b, f)
	}
	b.WriteString(")\n")
	return b.String()
}

type printer struct {
	p       *ir.Program
	indices map[ir.HeapType]int
}

func (pr *printer) heapRef(h ir.HeapType) string {
	if name := pr.p.TypeName(h); name != "" {
		return "$" + name
	}
	if i, ok := pr.indices[h]; ok {
		return strconv.Itoa(i)
	}
	return strconv.Itoa(int(h))
}

func (pr *printer) fieldRef(h ir.HeapType, field int, unresolved string) string {
	if field == ir.UnresolvedField {
		return "$" + unresolved
	}
	if name := pr.p.FieldName(h, field); name != "" {
		return "$" + name
	}
	return strconv.Itoa(field)
}

func (pr *printer) valueType(v ir.ValueType) string {
	if v.Kind == ir.Ref {
		if v.Nullable {
			return "(ref null " + pr.heapRef(v.Heap) + ")"
		}
		return "(ref " + pr.heapRef(v.Heap) + ")"
	}
	return v.Kind.NumericName()
}

func (pr *printer) fieldType(f ir.Field) string {
	if f.Mutable {
		return "(mut " + pr.valueType(f.Type) + ")"
	}
	return pr.valueType(f.Type)
}

func (pr *printer) typeDef(h ir.HeapType) string {
	def := pr.p.Types[h]
	switch def.Kind {
	case ir.KindStruct:
		var b strings.Builder
		b.WriteString("(struct")
		for i, f := range def.Fields {
			b.WriteString(" (field")
			if name := pr.p.FieldName(h, i); name != "" {
				b.WriteString(" $" + name)
			}
			b.WriteString(" " + pr.fieldType(f) + ")")
		}
		b.WriteString(")")
		if def.Super != ir.NoType {
			return "(sub " + pr.heapRef(def.Super) + " " + b.String() + ")"
		}
		return b.String()
	case ir.KindArray:
		return "(array " + pr.fieldType(def.Elem) + ")"
	default:
		var b strings.Builder
		b.WriteString("(func")
		pr.signature(&b, def.Params, def.Results)
		b.WriteString(")")
		return b.String()
	}
}

func (pr *printer) signature(b *strings.Builder, params, results []ir.ValueType) {
	if len(params) > 0 {
		b.WriteString(" (param")
		for _, v := range params {
			b.WriteString(" " + pr.valueType(v))
		}
		b.WriteString(")")
	}
	if len(results) > 0 {
		b.WriteString(" (result")
		for _, v := range results {
			b.WriteString(" " + pr.valueType(v))
		}
		b.WriteString(")")
	}
}

func (pr *printer) function(b *strings.Builder, f *ir.Function) {
	b.WriteString(" (func $" + f.Name)
	if f.Sig != ir.NoType {
		b.WriteString(" (type " + pr.heapRef(f.Sig) + ")")
	}
	for _, l := range f.Params {
		b.WriteString(" (param")
		if l.Name != "" {
			b.WriteString(" $" + l.Name)
		}
		b.WriteString(" " + pr.valueType(l.Type) + ")")
	}
	if len(f.Results) > 0 {
		b.WriteString(" (result")
		for _, v := range f.Results {
			b.WriteString(" " + pr.valueType(v))
		}
		b.WriteString(")")
	}
	b.WriteString("\n")
	for _, l := range f.Locals {
		b.WriteString("  (local")
		if l.Name != "" {
			b.WriteString(" $" + l.Name)
		}
		b.WriteString(" " + pr.valueType(l.Type) + ")\n")
	}
	for _, e := range f.Body {
		b.WriteString("  " + pr.expr(e, f) + "\n")
	}
	b.WriteString(" )\n")
}

func (pr *printer) localRef(f *ir.Function, i int) string {
	if f != nil {
		if name := f.LocalName(i); name != "" {
			return "$" + name
		}
	}
	return strconv.Itoa(i)
}

func (pr *printer) expr(e ir.Expr, f *ir.Function) string {
	var b strings.Builder
	pr.writeExpr(&b, e, f)
	return b.String()
}

func (pr *printer) writeExpr(b *strings.Builder, e ir.Expr, f *ir.Function) {
	operands := func(es ...ir.Expr) {
		for _, op := range es {
			b.WriteByte(' ')
			pr.writeExpr(b, op, f)
		}
		b.WriteByte(')')
	}
	switch e := e.(type) {
	case *ir.Const:
		b.WriteString("(" + e.Type.NumericName() + ".const ")
		if e.Type == ir.F32 || e.Type == ir.F64 {
			bits := 64
			if e.Type == ir.F32 {
				bits = 32
			}
			b.WriteString(strconv.FormatFloat(e.Float, 'g', -1, bits))
		} else {
			b.WriteString(strconv.FormatInt(e.Int, 10))
		}
		b.WriteByte(')')
	case *ir.LocalGet:
		b.WriteString("(local.get " + pr.localRef(f, e.Index) + ")")
	case *ir.LocalSet:
		b.WriteString("(local.set " + pr.localRef(f, e.Index))
		operands(e.Value)
	case *ir.GlobalGet:
		b.WriteString("(global.get $" + e.Name + ")")
	case *ir.GlobalSet:
		b.WriteString("(global.set $" + e.Name)
		operands(e.Value)
	case *ir.StructNew:
		b.WriteString("(struct.new " + pr.heapRef(e.Type))
		operands(e.Operands...)
	case *ir.StructNewDefault:
		b.WriteString("(struct.new_default " + pr.heapRef(e.Type) + ")")
	case *ir.StructGet:
		b.WriteString("(struct.get " + pr.heapRef(e.Type) + " " + pr.fieldRef(e.Type, e.Field, e.FieldName))
		operands(e.Ref)
	case *ir.StructSet:
		b.WriteString("(struct.set " + pr.heapRef(e.Type) + " " + pr.fieldRef(e.Type, e.Field, e.FieldName))
		operands(e.Ref, e.Value)
	case *ir.ArrayNew:
		b.WriteString("(array.new " + pr.heapRef(e.Type))
		operands(e.Init, e.Size)
	case *ir.ArrayNewDefault:
		b.WriteString("(array.new_default " + pr.heapRef(e.Type))
		operands(e.Size)
	case *ir.ArrayGet:
		b.WriteString("(array.get " + pr.heapRef(e.Type))
		operands(e.Ref, e.Index)
	case *ir.ArraySet:
		b.WriteString("(array.set " + pr.heapRef(e.Type))
		operands(e.Ref, e.Index, e.Value)
	case *ir.ArrayLen:
		b.WriteString("(array.len")
		operands(e.Ref)
	case *ir.RefNull:
		b.WriteString("(ref.null " + pr.heapRef(e.Type) + ")")
	case *ir.RefIsNull:
		b.WriteString("(ref.is_null")
		operands(e.Value)
	case *ir.Call:
		b.WriteString("(call $" + e.Target)
		operands(e.Operands...)
	case *ir.Drop:
		b.WriteString("(drop")
		operands(e.Value)
	case *ir.Nop:
		b.WriteString("(nop)")
	case *ir.Binary:
		info, _ := e.Op.Info()
		b.WriteString("(" + info.Name)
		operands(e.Left, e.Right)
	}
}
