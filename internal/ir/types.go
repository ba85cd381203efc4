package ir

import "fmt"

// HeapType is a handle into a Program's type arena.
type HeapType int

// NoType marks an absent heap type (e.g. a struct without a declared supertype).
const NoType HeapType = -1

// Kind is the shape of a heap type.
type Kind uint8

const (
	KindStruct Kind = iota + 1
	KindArray
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindArray:
		return "array"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ValueKind is the category of a value type.
type ValueKind uint8

const (
	// Unknown is only produced by the validator for expressions that already
	// failed to type-check; it is compatible with every other type.
	Unknown ValueKind = iota
	I32
	I64
	F32
	F64
	Ref
)

// ValueType is the type of a local, global, parameter or field.
type ValueType struct {
	Kind     ValueKind
	Heap     HeapType // only for Ref
	Nullable bool     // only for Ref
}

// Numeric value types.
var (
	TypeI32 = ValueType{Kind: I32, Heap: NoType}
	TypeI64 = ValueType{Kind: I64, Heap: NoType}
	TypeF32 = ValueType{Kind: F32, Heap: NoType}
	TypeF64 = ValueType{Kind: F64, Heap: NoType}
)

// RefType returns a reference to the given heap type.
func RefType(h HeapType, nullable bool) ValueType {
	return ValueType{Kind: Ref, Heap: h, Nullable: nullable}
}

// IsRef reports whether v is a reference type.
func (v ValueType) IsRef() bool { return v.Kind == Ref }

// IsNumeric reports whether v is one of the numeric types.
func (v ValueType) IsNumeric() bool {
	return v.Kind == I32 || v.Kind == I64 || v.Kind == F32 || v.Kind == F64
}

// Defaultable reports whether a zero value exists for v.
// Non-nullable references have no default.
func (v ValueType) Defaultable() bool {
	return v.Kind != Ref || v.Nullable
}

// NumericName returns the text name of a numeric kind ("i32", ...).
func (k ValueKind) NumericName() string {
	switch k {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return ""
	}
}

// Field is one slot of a struct, or the element of an array.
type Field struct {
	Type    ValueType
	Mutable bool
}

// TypeDef is the declaration stored in the arena for one heap type.
type TypeDef struct {
	Kind Kind

	// Struct
	Fields []Field
	Super  HeapType // declared supertype, NoType if none

	// Array
	Elem Field

	// Func
	Params  []ValueType
	Results []ValueType
}

// NewStruct returns a struct declaration with no supertype.
func NewStruct(fields ...Field) *TypeDef {
	return &TypeDef{Kind: KindStruct, Fields: fields, Super: NoType}
}

// NewArray returns an array declaration.
func NewArray(elem Field) *TypeDef {
	return &TypeDef{Kind: KindArray, Elem: elem, Super: NoType}
}

// NewFunc returns a function signature declaration.
func NewFunc(params, results []ValueType) *TypeDef {
	return &TypeDef{Kind: KindFunc, Params: params, Results: results, Super: NoType}
}

// IsStruct reports whether d declares a struct.
func (d *TypeDef) IsStruct() bool { return d != nil && d.Kind == KindStruct }

// Clone returns a deep copy of d.
func (d *TypeDef) Clone() *TypeDef {
	c := *d
	c.Fields = append([]Field(nil), d.Fields...)
	c.Params = append([]ValueType(nil), d.Params...)
	c.Results = append([]ValueType(nil), d.Results...)
	return &c
}

// Children returns the heap types d refers to directly, in declaration order:
// supertype first, then field/element/param/result references.
func (d *TypeDef) Children() []HeapType {
	var out []HeapType
	if d.Super != NoType {
		out = append(out, d.Super)
	}
	add := func(v ValueType) {
		if v.Kind == Ref {
			out = append(out, v.Heap)
		}
	}
	switch d.Kind {
	case KindStruct:
		for _, f := range d.Fields {
			add(f.Type)
		}
	case KindArray:
		add(d.Elem.Type)
	case KindFunc:
		for _, v := range d.Params {
			add(v)
		}
		for _, v := range d.Results {
			add(v)
		}
	}
	return out
}
