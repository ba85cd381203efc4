package ir

// Expr is a node in a function body or global initializer. Bodies are
// stored folded: operands hang off the instruction that consumes them.
type Expr interface {
	exprNode()
}

// UnresolvedField marks a struct access whose field name did not resolve
// when the program was built from text. The validator rejects it.
const UnresolvedField = -1

type (
	// Const is a numeric constant. Int holds i32/i64 values, Float holds f32/f64.
	Const struct {
		Type  ValueKind
		Int   int64
		Float float64
	}

	// LocalGet reads a parameter or local by index (params first).
	LocalGet struct {
		Index int
	}

	// LocalSet writes a parameter or local.
	LocalSet struct {
		Index int
		Value Expr
	}

	// GlobalGet reads a global by name.
	GlobalGet struct {
		Name string
	}

	// GlobalSet writes a mutable global.
	GlobalSet struct {
		Name  string
		Value Expr
	}

	// StructNew allocates a struct from one operand per field.
	StructNew struct {
		Type     HeapType
		Operands []Expr
	}

	// StructNewDefault allocates a struct with every field defaulted.
	StructNewDefault struct {
		Type HeapType
	}

	// StructGet reads a field.
	StructGet struct {
		Type      HeapType
		Field     int
		FieldName string // set only when Field is UnresolvedField
		Ref       Expr
	}

	// StructSet writes a mutable field.
	StructSet struct {
		Type      HeapType
		Field     int
		FieldName string // set only when Field is UnresolvedField
		Ref       Expr
		Value     Expr
	}

	// ArrayNew allocates an array filled with Init.
	ArrayNew struct {
		Type HeapType
		Init Expr
		Size Expr
	}

	// ArrayNewDefault allocates an array of default elements.
	ArrayNewDefault struct {
		Type HeapType
		Size Expr
	}

	// ArrayGet reads an element.
	ArrayGet struct {
		Type  HeapType
		Ref   Expr
		Index Expr
	}

	// ArraySet writes an element of a mutable array.
	ArraySet struct {
		Type  HeapType
		Ref   Expr
		Index Expr
		Value Expr
	}

	// ArrayLen returns the length of an array.
	ArrayLen struct {
		Ref Expr
	}

	// RefNull is the null reference of a heap type.
	RefNull struct {
		Type HeapType
	}

	// RefIsNull tests a reference for null.
	RefIsNull struct {
		Value Expr
	}

	// Call calls a function by name.
	Call struct {
		Target   string
		Operands []Expr
	}

	// Drop discards a value.
	Drop struct {
		Value Expr
	}

	// Nop does nothing.
	Nop struct{}

	// Binary is a two-operand numeric instruction.
	Binary struct {
		Op    BinaryOp
		Left  Expr
		Right Expr
	}
)

func (*Const) exprNode()            {}
func (*LocalGet) exprNode()         {}
func (*LocalSet) exprNode()         {}
func (*GlobalGet) exprNode()        {}
func (*GlobalSet) exprNode()        {}
func (*StructNew) exprNode()        {}
func (*StructNewDefault) exprNode() {}
func (*StructGet) exprNode()        {}
func (*StructSet) exprNode()        {}
func (*ArrayNew) exprNode()         {}
func (*ArrayNewDefault) exprNode()  {}
func (*ArrayGet) exprNode()         {}
func (*ArraySet) exprNode()         {}
func (*ArrayLen) exprNode()         {}
func (*RefNull) exprNode()          {}
func (*RefIsNull) exprNode()        {}
func (*Call) exprNode()             {}
func (*Drop) exprNode()             {}
func (*Nop) exprNode()              {}
func (*Binary) exprNode()           {}

// BinaryOp identifies a Binary instruction.
type BinaryOp uint8

const (
	OpI32Add BinaryOp = iota + 1
	OpI32Sub
	OpI32Mul
	OpI32Eq
	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64Eq
	OpF32Add
	OpF64Add
)

// BinaryOpInfo describes the operand and result types of a BinaryOp.
type BinaryOpInfo struct {
	Name    string
	Operand ValueKind
	Result  ValueKind
}

var binaryOps = map[BinaryOp]BinaryOpInfo{
	OpI32Add: {"i32.add", I32, I32},
	OpI32Sub: {"i32.sub", I32, I32},
	OpI32Mul: {"i32.mul", I32, I32},
	OpI32Eq:  {"i32.eq", I32, I32},
	OpI64Add: {"i64.add", I64, I64},
	OpI64Sub: {"i64.sub", I64, I64},
	OpI64Mul: {"i64.mul", I64, I64},
	OpI64Eq:  {"i64.eq", I64, I32},
	OpF32Add: {"f32.add", F32, F32},
	OpF64Add: {"f64.add", F64, F64},
}

// Info returns the description of op.
func (op BinaryOp) Info() (BinaryOpInfo, bool) {
	info, ok := binaryOps[op]
	return info, ok
}

// LookupBinaryOp finds a BinaryOp by its text name.
func LookupBinaryOp(name string) (BinaryOp, bool) {
	for op, info := range binaryOps {
		if info.Name == name {
			return op, true
		}
	}
	return 0, false
}

// Operands returns the direct operand expressions of e in evaluation order.
func Operands(e Expr) []Expr {
	switch e := e.(type) {
	case *LocalSet:
		return []Expr{e.Value}
	case *GlobalSet:
		return []Expr{e.Value}
	case *StructNew:
		return e.Operands
	case *StructGet:
		return []Expr{e.Ref}
	case *StructSet:
		return []Expr{e.Ref, e.Value}
	case *ArrayNew:
		return []Expr{e.Init, e.Size}
	case *ArrayNewDefault:
		return []Expr{e.Size}
	case *ArrayGet:
		return []Expr{e.Ref, e.Index}
	case *ArraySet:
		return []Expr{e.Ref, e.Index, e.Value}
	case *ArrayLen:
		return []Expr{e.Ref}
	case *RefIsNull:
		return []Expr{e.Value}
	case *Call:
		return e.Operands
	case *Drop:
		return []Expr{e.Value}
	case *Binary:
		return []Expr{e.Left, e.Right}
	default:
		return nil
	}
}

// Walk calls fn for e and every expression below it, parents first.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	for _, op := range Operands(e) {
		Walk(op, fn)
	}
}

// ExprHeapType returns the heap type an expression names directly, if any.
func ExprHeapType(e Expr) (HeapType, bool) {
	switch e := e.(type) {
	case *StructNew:
		return e.Type, true
	case *StructNewDefault:
		return e.Type, true
	case *StructGet:
		return e.Type, true
	case *StructSet:
		return e.Type, true
	case *ArrayNew:
		return e.Type, true
	case *ArrayNewDefault:
		return e.Type, true
	case *ArrayGet:
		return e.Type, true
	case *ArraySet:
		return e.Type, true
	case *RefNull:
		return e.Type, true
	default:
		return NoType, false
	}
}

// CloneExpr returns a deep copy of e.
func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *Const:
		c := *e
		return &c
	case *LocalGet:
		c := *e
		return &c
	case *LocalSet:
		return &LocalSet{Index: e.Index, Value: CloneExpr(e.Value)}
	case *GlobalGet:
		c := *e
		return &c
	case *GlobalSet:
		return &GlobalSet{Name: e.Name, Value: CloneExpr(e.Value)}
	case *StructNew:
		return &StructNew{Type: e.Type, Operands: cloneExprs(e.Operands)}
	case *StructNewDefault:
		c := *e
		return &c
	case *StructGet:
		return &StructGet{Type: e.Type, Field: e.Field, FieldName: e.FieldName, Ref: CloneExpr(e.Ref)}
	case *StructSet:
		return &StructSet{Type: e.Type, Field: e.Field, FieldName: e.FieldName, Ref: CloneExpr(e.Ref), Value: CloneExpr(e.Value)}
	case *ArrayNew:
		return &ArrayNew{Type: e.Type, Init: CloneExpr(e.Init), Size: CloneExpr(e.Size)}
	case *ArrayNewDefault:
		return &ArrayNewDefault{Type: e.Type, Size: CloneExpr(e.Size)}
	case *ArrayGet:
		return &ArrayGet{Type: e.Type, Ref: CloneExpr(e.Ref), Index: CloneExpr(e.Index)}
	case *ArraySet:
		return &ArraySet{Type: e.Type, Ref: CloneExpr(e.Ref), Index: CloneExpr(e.Index), Value: CloneExpr(e.Value)}
	case *ArrayLen:
		return &ArrayLen{Ref: CloneExpr(e.Ref)}
	case *RefNull:
		c := *e
		return &c
	case *RefIsNull:
		return &RefIsNull{Value: CloneExpr(e.Value)}
	case *Call:
		return &Call{Target: e.Target, Operands: cloneExprs(e.Operands)}
	case *Drop:
		return &Drop{Value: CloneExpr(e.Value)}
	case *Nop:
		return &Nop{}
	case *Binary:
		return &Binary{Op: e.Op, Left: CloneExpr(e.Left), Right: CloneExpr(e.Right)}
	default:
		panic("ir: CloneExpr: unhandled expression type")
	}
}

func cloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = CloneExpr(e)
	}
	return out
}
