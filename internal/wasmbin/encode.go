package wasmbin

import (
	"encoding/hex"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/roach88/typedce/internal/ir"
)

// Record field numbers.
const (
	modVersion  protowire.Number = 1
	modType     protowire.Number = 2
	modGlobal   protowire.Number = 3
	modFunction protowire.Number = 4

	typeKind   protowire.Number = 1
	typeName   protowire.Number = 2
	typeField  protowire.Number = 3
	typeSuper  protowire.Number = 4
	typeElem   protowire.Number = 5
	typeParam  protowire.Number = 6
	typeResult protowire.Number = 7

	fieldType    protowire.Number = 1
	fieldMutable protowire.Number = 2
	fieldName    protowire.Number = 3

	valKind     protowire.Number = 1
	valHeap     protowire.Number = 2
	valNullable protowire.Number = 3

	globalName    protowire.Number = 1
	globalType    protowire.Number = 2
	globalMutable protowire.Number = 3
	globalInit    protowire.Number = 4

	funcName   protowire.Number = 1
	funcSig    protowire.Number = 2
	funcParam  protowire.Number = 3
	funcResult protowire.Number = 4
	funcLocal  protowire.Number = 5
	funcBody   protowire.Number = 6

	localName protowire.Number = 1
	localType protowire.Number = 2

	exprOp      protowire.Number = 1
	exprInt     protowire.Number = 2
	exprFloat   protowire.Number = 3
	exprType    protowire.Number = 4
	exprField   protowire.Number = 5
	exprName    protowire.Number = 6
	exprOperand protowire.Number = 7
	exprBinary  protowire.Number = 8
	exprIndex   protowire.Number = 9
	exprKind    protowire.Number = 10
)

// Expression opcodes.
const (
	opConst uint64 = iota + 1
	opLocalGet
	opLocalSet
	opGlobalGet
	opGlobalSet
	opStructNew
	opStructNewDefault
	opStructGet
	opStructSet
	opArrayNew
	opArrayNewDefault
	opArrayGet
	opArraySet
	opArrayLen
	opRefNull
	opRefIsNull
	opCall
	opDrop
	opNop
	opBinary
)

// Encode returns the binary form of p.
func Encode(p *ir.Program) []byte {
	types, indices := ir.CollectHeapTypes(p)
	e := &encoder{p: p, indices: indices}

	var b []byte
	b = protowire.AppendTag(b, modVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, ir.FormatVersion)
	for _, h := range types {
		b = protowire.AppendTag(b, modType, protowire.BytesType)
		b = protowire.AppendBytes(b, e.typeDef(h))
	}
	for _, g := range p.Globals {
		b = protowire.AppendTag(b, modGlobal, protowire.BytesType)
		b = protowire.AppendBytes(b, e.global(g))
	}
	for _, f := range p.Functions {
		b = protowire.AppendTag(b, modFunction, protowire.BytesType)
		b = protowire.AppendBytes(b, e.function(f))
	}
	return b
}

// Dump renders data as a hex dump for diagnostics.
func Dump(data []byte) string {
	return hex.Dump(data)
}

type encoder struct {
	p       *ir.Program
	indices map[ir.HeapType]int
}

// heap encodes a handle as its renumbered index plus one; 0 means none.
func (e *encoder) heap(h ir.HeapType) uint64 {
	i, ok := e.indices[h]
	if !ok {
		return 0
	}
	return uint64(i) + 1
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func (e *encoder) valueType(v ir.ValueType) []byte {
	var b []byte
	b = appendVarint(b, valKind, uint64(v.Kind))
	if v.Kind == ir.Ref {
		b = appendVarint(b, valHeap, e.heap(v.Heap))
		b = appendVarint(b, valNullable, protowire.EncodeBool(v.Nullable))
	}
	return b
}

func (e *encoder) field(f ir.Field, name string) []byte {
	var b []byte
	b = appendMessage(b, fieldType, e.valueType(f.Type))
	b = appendVarint(b, fieldMutable, protowire.EncodeBool(f.Mutable))
	return appendString(b, fieldName, name)
}

func (e *encoder) typeDef(h ir.HeapType) []byte {
	def := e.p.Type(h)
	var b []byte
	b = appendVarint(b, typeKind, uint64(def.Kind))
	b = appendString(b, typeName, e.p.TypeName(h))
	switch def.Kind {
	case ir.KindStruct:
		for i, f := range def.Fields {
			b = appendMessage(b, typeField, e.field(f, e.p.FieldName(h, i)))
		}
		if def.Super != ir.NoType {
			b = appendVarint(b, typeSuper, e.heap(def.Super))
		}
	case ir.KindArray:
		b = appendMessage(b, typeElem, e.field(def.Elem, ""))
	case ir.KindFunc:
		for _, v := range def.Params {
			b = appendMessage(b, typeParam, e.valueType(v))
		}
		for _, v := range def.Results {
			b = appendMessage(b, typeResult, e.valueType(v))
		}
	}
	return b
}

func (e *encoder) global(g *ir.Global) []byte {
	var b []byte
	b = appendString(b, globalName, g.Name)
	b = appendMessage(b, globalType, e.valueType(g.Type))
	b = appendVarint(b, globalMutable, protowire.EncodeBool(g.Mutable))
	if g.Init != nil {
		b = appendMessage(b, globalInit, e.expr(g.Init))
	}
	return b
}

func (e *encoder) local(l ir.Local) []byte {
	var b []byte
	b = appendString(b, localName, l.Name)
	return appendMessage(b, localType, e.valueType(l.Type))
}

func (e *encoder) function(f *ir.Function) []byte {
	var b []byte
	b = appendString(b, funcName, f.Name)
	if f.Sig != ir.NoType {
		b = appendVarint(b, funcSig, e.heap(f.Sig))
	}
	for _, l := range f.Params {
		b = appendMessage(b, funcParam, e.local(l))
	}
	for _, v := range f.Results {
		b = appendMessage(b, funcResult, e.valueType(v))
	}
	for _, l := range f.Locals {
		b = appendMessage(b, funcLocal, e.local(l))
	}
	for _, x := range f.Body {
		b = appendMessage(b, funcBody, e.expr(x))
	}
	return b
}

func (e *encoder) expr(x ir.Expr) []byte {
	var b []byte
	op := func(code uint64) { b = appendVarint(b, exprOp, code) }
	typ := func(h ir.HeapType) { b = appendVarint(b, exprType, e.heap(h)) }
	fieldRef := func(i int, name string) {
		b = appendVarint(b, exprField, protowire.EncodeZigZag(int64(i)))
		if i == ir.UnresolvedField {
			b = appendString(b, exprName, name)
		}
	}

	switch x := x.(type) {
	case *ir.Const:
		op(opConst)
		b = appendVarint(b, exprKind, uint64(x.Type))
		switch x.Type {
		case ir.F32, ir.F64:
			b = protowire.AppendTag(b, exprFloat, protowire.Fixed64Type)
			b = protowire.AppendFixed64(b, math.Float64bits(x.Float))
		default:
			b = appendVarint(b, exprInt, protowire.EncodeZigZag(x.Int))
		}
	case *ir.LocalGet:
		op(opLocalGet)
		b = appendVarint(b, exprIndex, uint64(x.Index))
	case *ir.LocalSet:
		op(opLocalSet)
		b = appendVarint(b, exprIndex, uint64(x.Index))
	case *ir.GlobalGet:
		op(opGlobalGet)
		b = appendString(b, exprName, x.Name)
	case *ir.GlobalSet:
		op(opGlobalSet)
		b = appendString(b, exprName, x.Name)
	case *ir.StructNew:
		op(opStructNew)
		typ(x.Type)
	case *ir.StructNewDefault:
		op(opStructNewDefault)
		typ(x.Type)
	case *ir.StructGet:
		op(opStructGet)
		typ(x.Type)
		fieldRef(x.Field, x.FieldName)
	case *ir.StructSet:
		op(opStructSet)
		typ(x.Type)
		fieldRef(x.Field, x.FieldName)
	case *ir.ArrayNew:
		op(opArrayNew)
		typ(x.Type)
	case *ir.ArrayNewDefault:
		op(opArrayNewDefault)
		typ(x.Type)
	case *ir.ArrayGet:
		op(opArrayGet)
		typ(x.Type)
	case *ir.ArraySet:
		op(opArraySet)
		typ(x.Type)
	case *ir.ArrayLen:
		op(opArrayLen)
	case *ir.RefNull:
		op(opRefNull)
		typ(x.Type)
	case *ir.RefIsNull:
		op(opRefIsNull)
	case *ir.Call:
		op(opCall)
		b = appendString(b, exprName, x.Target)
	case *ir.Drop:
		op(opDrop)
	case *ir.Nop:
		op(opNop)
	case *ir.Binary:
		op(opBinary)
		b = appendVarint(b, exprBinary, uint64(x.Op))
	}
	for _, operand := range ir.Operands(x) {
		b = appendMessage(b, exprOperand, e.expr(operand))
	}
	return b
}
