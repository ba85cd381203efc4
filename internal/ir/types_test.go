package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultable(t *testing.T) {
	assert.True(t, TypeI32.Defaultable())
	assert.True(t, TypeF64.Defaultable())
	assert.True(t, RefType(0, true).Defaultable())
	assert.False(t, RefType(0, false).Defaultable())
}

func TestTypeDefChildren(t *testing.T) {
	s := NewStruct(Field{Type: TypeI32}, Field{Type: RefType(4, true)}, Field{Type: RefType(2, false)})
	s.Super = 7
	assert.Equal(t, []HeapType{7, 4, 2}, s.Children())

	a := NewArray(Field{Type: RefType(3, true), Mutable: true})
	assert.Equal(t, []HeapType{3}, a.Children())

	f := NewFunc([]ValueType{TypeI32, RefType(1, true)}, []ValueType{RefType(5, false)})
	assert.Equal(t, []HeapType{1, 5}, f.Children())

	assert.Empty(t, NewStruct(Field{Type: TypeF32}).Children())
}

func TestTypeDefClone(t *testing.T) {
	s := NewStruct(Field{Type: TypeI32})
	c := s.Clone()
	c.Fields[0].Type = TypeI64
	c.Fields = append(c.Fields, Field{Type: TypeF32})

	require.Len(t, s.Fields, 1)
	assert.Equal(t, TypeI32, s.Fields[0].Type)
	assert.True(t, c.IsStruct())
	assert.False(t, NewArray(Field{}).IsStruct())
	var nilDef *TypeDef
	assert.False(t, nilDef.IsStruct())
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "struct", KindStruct.String())
	assert.Equal(t, "array", KindArray.String())
	assert.Equal(t, "func", KindFunc.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
	assert.Equal(t, "i64", I64.NumericName())
	assert.Equal(t, "", Ref.NumericName())
}

func TestParseFeatures(t *testing.T) {
	tests := []struct {
		names []string
		want  FeatureSet
	}{
		{nil, 0},
		{[]string{"gc"}, FeatureGC},
		{[]string{"gc", "reference-types"}, FeatureGC | FeatureReferenceTypes},
		{[]string{"mvp"}, FeaturesMVP},
		{[]string{"all"}, FeaturesAll},
		{[]string{"mvp", "gc"}, FeatureMutableGlobals | FeatureGC},
	}
	for _, tt := range tests {
		got, err := ParseFeatures(tt.names)
		require.NoError(t, err, "%v", tt.names)
		assert.Equal(t, tt.want, got, "%v", tt.names)
	}

	_, err := ParseFeatures([]string{"simd"})
	assert.ErrorContains(t, err, `unknown feature "simd"`)
}

func TestFeatureSetString(t *testing.T) {
	assert.Equal(t, "none", FeatureSet(0).String())
	assert.Equal(t, "gc,mutable-globals,reference-types", FeaturesAll.String())
	assert.Equal(t, []string{"gc"}, FeatureGC.Names())
	assert.True(t, FeaturesAll.Has(FeatureGC|FeatureReferenceTypes))
	assert.False(t, FeaturesMVP.Has(FeatureGC))
	assert.Equal(t, FeatureGC|FeatureMutableGlobals, FeatureGC.With(FeatureMutableGlobals))
}

func TestNormalizeName(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	assert.Equal(t, "caf\u00e9", NormalizeName("cafe\u0301"))
	assert.Equal(t, "plain", NormalizeName("plain"))
}

func TestTypeNamesClone(t *testing.T) {
	n := &TypeNames{Name: "A", FieldNames: map[int]string{0: "x"}}
	c := n.Clone()
	c.FieldNames[0] = "y"
	c.Name = "B"

	assert.Equal(t, "A", n.Name)
	assert.Equal(t, "x", n.FieldNames[0])
}

func TestBinaryOps(t *testing.T) {
	op, ok := LookupBinaryOp("i64.eq")
	require.True(t, ok)
	info, ok := op.Info()
	require.True(t, ok)
	assert.Equal(t, BinaryOpInfo{Name: "i64.eq", Operand: I64, Result: I32}, info)

	_, ok = LookupBinaryOp("i32.div_s")
	assert.False(t, ok)
	_, ok = BinaryOp(0).Info()
	assert.False(t, ok)
}

func TestWalkVisitsParentsFirst(t *testing.T) {
	e := &StructSet{
		Type:  1,
		Ref:   &LocalGet{Index: 0},
		Value: &Binary{Op: OpI32Add, Left: &Const{Type: I32, Int: 1}, Right: &GlobalGet{Name: "g"}},
	}

	var seen []string
	Walk(e, func(e Expr) {
		switch e.(type) {
		case *StructSet:
			seen = append(seen, "struct.set")
		case *LocalGet:
			seen = append(seen, "local.get")
		case *Binary:
			seen = append(seen, "binary")
		case *Const:
			seen = append(seen, "const")
		case *GlobalGet:
			seen = append(seen, "global.get")
		}
	})

	assert.Equal(t, []string{"struct.set", "local.get", "binary", "const", "global.get"}, seen)
}

func TestExprHeapType(t *testing.T) {
	h, ok := ExprHeapType(&ArrayGet{Type: 3})
	assert.True(t, ok)
	assert.Equal(t, HeapType(3), h)

	_, ok = ExprHeapType(&ArrayLen{})
	assert.False(t, ok)
	_, ok = ExprHeapType(&Call{Target: "f"})
	assert.False(t, ok)
}

func TestCloneExpr(t *testing.T) {
	orig := &Call{Target: "f", Operands: []Expr{
		&StructGet{Type: 0, Field: UnresolvedField, FieldName: "gone", Ref: &RefNull{Type: 0}},
		&ArraySet{Type: 1, Ref: &LocalGet{}, Index: &Const{Type: I32}, Value: &Const{Type: F32, Float: 1.5}},
	}}

	c := CloneExpr(orig).(*Call)
	require.Equal(t, orig, c)

	c.Operands[0].(*StructGet).FieldName = "other"
	c.Operands[1].(*ArraySet).Value.(*Const).Float = 2

	assert.Equal(t, "gone", orig.Operands[0].(*StructGet).FieldName)
	assert.Equal(t, 1.5, orig.Operands[1].(*ArraySet).Value.(*Const).Float)
	assert.Nil(t, CloneExpr(nil))
}
