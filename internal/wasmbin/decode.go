package wasmbin

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/roach88/typedce/internal/ir"
)

// DecodeError reports malformed binary input.
type DecodeError struct {
	Section string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Section, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// record is one decoded (tag, value) pair.
type record struct {
	num    protowire.Number
	varint uint64
	fixed  uint64
	bytes  []byte
}

func records(b []byte) ([]record, error) {
	var out []record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		r := record{num: num}
		switch typ {
		case protowire.VarintType:
			r.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			r.fixed, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			r.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		out = append(out, r)
	}
	return out, nil
}

// Decode rebuilds a program from its binary form. The result has no
// features enabled.
func Decode(data []byte) (*ir.Program, error) {
	recs, err := records(data)
	if err != nil {
		return nil, &DecodeError{Section: "module", Err: err}
	}
	d := &decoder{p: ir.NewProgram(0)}

	var typeRecs, globalRecs, funcRecs [][]byte
	version := uint64(0)
	for _, r := range recs {
		switch r.num {
		case modVersion:
			version = r.varint
		case modType:
			typeRecs = append(typeRecs, r.bytes)
		case modGlobal:
			globalRecs = append(globalRecs, r.bytes)
		case modFunction:
			funcRecs = append(funcRecs, r.bytes)
		}
	}
	if version != ir.FormatVersion {
		return nil, &DecodeError{Section: "module", Err: fmt.Errorf("unsupported format version %d", version)}
	}

	for range typeRecs {
		d.p.AddType(&ir.TypeDef{Super: ir.NoType})
	}
	for i, b := range typeRecs {
		if err := d.typeDef(ir.HeapType(i), b); err != nil {
			return nil, &DecodeError{Section: fmt.Sprintf("type %d", i), Err: err}
		}
	}
	for i, b := range globalRecs {
		g, err := d.global(b)
		if err != nil {
			return nil, &DecodeError{Section: fmt.Sprintf("global %d", i), Err: err}
		}
		d.p.Globals = append(d.p.Globals, g)
	}
	for i, b := range funcRecs {
		f, err := d.function(b)
		if err != nil {
			return nil, &DecodeError{Section: fmt.Sprintf("function %d", i), Err: err}
		}
		d.p.Functions = append(d.p.Functions, f)
	}
	return d.p, nil
}

type decoder struct {
	p *ir.Program
}

// heap decodes an index-plus-one reference.
func (d *decoder) heap(v uint64) (ir.HeapType, error) {
	if v == 0 || v > uint64(len(d.p.Types)) {
		return ir.NoType, fmt.Errorf("heap type reference %d out of range", v)
	}
	return ir.HeapType(v - 1), nil
}

func (d *decoder) valueType(b []byte) (ir.ValueType, error) {
	recs, err := records(b)
	if err != nil {
		return ir.ValueType{}, err
	}
	v := ir.ValueType{Heap: ir.NoType}
	for _, r := range recs {
		switch r.num {
		case valKind:
			v.Kind = ir.ValueKind(r.varint)
		case valHeap:
			if v.Heap, err = d.heap(r.varint); err != nil {
				return ir.ValueType{}, err
			}
		case valNullable:
			v.Nullable = protowire.DecodeBool(r.varint)
		}
	}
	if v.Kind == ir.Unknown || v.Kind > ir.Ref {
		return ir.ValueType{}, fmt.Errorf("invalid value kind %d", v.Kind)
	}
	if v.Kind == ir.Ref && v.Heap == ir.NoType {
		return ir.ValueType{}, fmt.Errorf("reference without heap type")
	}
	return v, nil
}

func (d *decoder) field(b []byte) (ir.Field, string, error) {
	recs, err := records(b)
	if err != nil {
		return ir.Field{}, "", err
	}
	var f ir.Field
	var name string
	for _, r := range recs {
		switch r.num {
		case fieldType:
			if f.Type, err = d.valueType(r.bytes); err != nil {
				return ir.Field{}, "", err
			}
		case fieldMutable:
			f.Mutable = protowire.DecodeBool(r.varint)
		case fieldName:
			name = string(r.bytes)
		}
	}
	return f, name, nil
}

func (d *decoder) typeDef(h ir.HeapType, b []byte) error {
	recs, err := records(b)
	if err != nil {
		return err
	}
	def := d.p.Types[h]
	for _, r := range recs {
		switch r.num {
		case typeKind:
			def.Kind = ir.Kind(r.varint)
		case typeName:
			d.p.Names(h).Name = string(r.bytes)
		case typeField:
			f, name, err := d.field(r.bytes)
			if err != nil {
				return err
			}
			if name != "" {
				d.p.Names(h).FieldNames[len(def.Fields)] = name
			}
			def.Fields = append(def.Fields, f)
		case typeSuper:
			if def.Super, err = d.heap(r.varint); err != nil {
				return err
			}
		case typeElem:
			if def.Elem, _, err = d.field(r.bytes); err != nil {
				return err
			}
		case typeParam, typeResult:
			v, err := d.valueType(r.bytes)
			if err != nil {
				return err
			}
			if r.num == typeParam {
				def.Params = append(def.Params, v)
			} else {
				def.Results = append(def.Results, v)
			}
		}
	}
	switch def.Kind {
	case ir.KindStruct, ir.KindArray, ir.KindFunc:
		return nil
	}
	return fmt.Errorf("invalid type kind %d", def.Kind)
}

func (d *decoder) global(b []byte) (*ir.Global, error) {
	recs, err := records(b)
	if err != nil {
		return nil, err
	}
	g := &ir.Global{}
	for _, r := range recs {
		switch r.num {
		case globalName:
			g.Name = string(r.bytes)
		case globalType:
			if g.Type, err = d.valueType(r.bytes); err != nil {
				return nil, err
			}
		case globalMutable:
			g.Mutable = protowire.DecodeBool(r.varint)
		case globalInit:
			if g.Init, err = d.expr(r.bytes); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func (d *decoder) local(b []byte) (ir.Local, error) {
	recs, err := records(b)
	if err != nil {
		return ir.Local{}, err
	}
	var l ir.Local
	for _, r := range recs {
		switch r.num {
		case localName:
			l.Name = string(r.bytes)
		case localType:
			if l.Type, err = d.valueType(r.bytes); err != nil {
				return ir.Local{}, err
			}
		}
	}
	return l, nil
}

func (d *decoder) function(b []byte) (*ir.Function, error) {
	recs, err := records(b)
	if err != nil {
		return nil, err
	}
	f := &ir.Function{Sig: ir.NoType}
	for _, r := range recs {
		switch r.num {
		case funcName:
			f.Name = string(r.bytes)
		case funcSig:
			if f.Sig, err = d.heap(r.varint); err != nil {
				return nil, err
			}
		case funcParam, funcLocal:
			l, err := d.local(r.bytes)
			if err != nil {
				return nil, err
			}
			if r.num == funcParam {
				f.Params = append(f.Params, l)
			} else {
				f.Locals = append(f.Locals, l)
			}
		case funcResult:
			v, err := d.valueType(r.bytes)
			if err != nil {
				return nil, err
			}
			f.Results = append(f.Results, v)
		case funcBody:
			x, err := d.expr(r.bytes)
			if err != nil {
				return nil, err
			}
			f.Body = append(f.Body, x)
		}
	}
	return f, nil
}

func (d *decoder) expr(b []byte) (ir.Expr, error) {
	recs, err := records(b)
	if err != nil {
		return nil, err
	}
	var (
		op, kind, binary, index uint64
		intVal                  int64
		floatVal                float64
		typ                     = ir.NoType
		field                   int
		name                    string
		operands                []ir.Expr
	)
	for _, r := range recs {
		switch r.num {
		case exprOp:
			op = r.varint
		case exprKind:
			kind = r.varint
		case exprInt:
			intVal = protowire.DecodeZigZag(r.varint)
		case exprFloat:
			floatVal = math.Float64frombits(r.fixed)
		case exprType:
			if typ, err = d.heap(r.varint); err != nil {
				return nil, err
			}
		case exprField:
			field = int(protowire.DecodeZigZag(r.varint))
		case exprName:
			name = string(r.bytes)
		case exprIndex:
			index = r.varint
		case exprBinary:
			binary = r.varint
		case exprOperand:
			x, err := d.expr(r.bytes)
			if err != nil {
				return nil, err
			}
			operands = append(operands, x)
		}
	}

	need := func(n int) error {
		if len(operands) != n {
			return fmt.Errorf("opcode %d takes %d operand(s), got %d", op, n, len(operands))
		}
		return nil
	}
	needType := func() error {
		if typ == ir.NoType {
			return fmt.Errorf("opcode %d needs a heap type", op)
		}
		return nil
	}
	fieldName := func() string {
		if field == ir.UnresolvedField {
			return name
		}
		return ""
	}

	switch op {
	case opConst:
		c := &ir.Const{Type: ir.ValueKind(kind)}
		switch c.Type {
		case ir.I32, ir.I64:
			c.Int = intVal
		case ir.F32, ir.F64:
			c.Float = floatVal
		default:
			return nil, fmt.Errorf("invalid constant kind %d", kind)
		}
		return c, need(0)
	case opLocalGet:
		return &ir.LocalGet{Index: int(index)}, need(0)
	case opLocalSet:
		if err := need(1); err != nil {
			return nil, err
		}
		return &ir.LocalSet{Index: int(index), Value: operands[0]}, nil
	case opGlobalGet:
		return &ir.GlobalGet{Name: name}, need(0)
	case opGlobalSet:
		if err := need(1); err != nil {
			return nil, err
		}
		return &ir.GlobalSet{Name: name, Value: operands[0]}, nil
	case opNop:
		return &ir.Nop{}, need(0)
	case opDrop, opRefIsNull, opArrayLen:
		if err := need(1); err != nil {
			return nil, err
		}
		switch op {
		case opDrop:
			return &ir.Drop{Value: operands[0]}, nil
		case opRefIsNull:
			return &ir.RefIsNull{Value: operands[0]}, nil
		}
		return &ir.ArrayLen{Ref: operands[0]}, nil
	case opCall:
		return &ir.Call{Target: name, Operands: operands}, nil
	case opBinary:
		if err := need(2); err != nil {
			return nil, err
		}
		bop := ir.BinaryOp(binary)
		if _, ok := bop.Info(); !ok {
			return nil, fmt.Errorf("invalid binary operator %d", binary)
		}
		return &ir.Binary{Op: bop, Left: operands[0], Right: operands[1]}, nil
	}

	if err := needType(); err != nil {
		return nil, err
	}
	switch op {
	case opStructNew:
		return &ir.StructNew{Type: typ, Operands: operands}, nil
	case opStructNewDefault:
		return &ir.StructNewDefault{Type: typ}, need(0)
	case opRefNull:
		return &ir.RefNull{Type: typ}, need(0)
	case opStructGet:
		if err := need(1); err != nil {
			return nil, err
		}
		return &ir.StructGet{Type: typ, Field: field, FieldName: fieldName(), Ref: operands[0]}, nil
	case opStructSet:
		if err := need(2); err != nil {
			return nil, err
		}
		return &ir.StructSet{Type: typ, Field: field, FieldName: fieldName(), Ref: operands[0], Value: operands[1]}, nil
	case opArrayNew:
		if err := need(2); err != nil {
			return nil, err
		}
		return &ir.ArrayNew{Type: typ, Init: operands[0], Size: operands[1]}, nil
	case opArrayNewDefault:
		if err := need(1); err != nil {
			return nil, err
		}
		return &ir.ArrayNewDefault{Type: typ, Size: operands[0]}, nil
	case opArrayGet:
		if err := need(2); err != nil {
			return nil, err
		}
		return &ir.ArrayGet{Type: typ, Ref: operands[0], Index: operands[1]}, nil
	case opArraySet:
		if err := need(3); err != nil {
			return nil, err
		}
		return &ir.ArraySet{Type: typ, Ref: operands[0], Index: operands[1], Value: operands[2]}, nil
	}
	return nil, fmt.Errorf("unknown opcode %d", op)
}
