package wat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedce/internal/ir"
)

// canonical is already in printer layout, so it must survive a round trip
// byte for byte.
const canonical = `(module
 (type $A (struct (field $x (mut i32)) (field $next (ref null $A))))
 (type $B (sub $A (struct (field $x (mut i32)) (field $next (ref null $A)) (field $y f64))))
 (type $arr (array (mut i64)))
 (type $sig (func (param i32) (result i32)))
 (global $count (mut i32) (i32.const 0))
 (global $nil (ref null $A) (ref.null $A))
 (func $id (type $sig) (param $n i32) (result i32)
  (local.get $n)
 )
 (func $main (result f64)
  (local $b (ref null $B))
  (local i64)
  (local.set $b (struct.new $B (i32.const 1) (ref.null $A) (f64.const 2.5)))
  (struct.set $B $x (local.get $b) (call $id (i32.const -3)))
  (global.set $count (i32.add (global.get $count) (i32.const 1)))
  (local.set 1 (array.get $arr (array.new $arr (i64.const 5) (i32.const 2)) (i32.const 0)))
  (drop (array.len (array.new_default $arr (i32.const 1))))
  (drop (ref.is_null (local.get $b)))
  (nop)
  (struct.get $B $y (local.get $b))
 )
)
`

func TestRoundTrip(t *testing.T) {
	p, err := Parse(canonical, ir.FeaturesAll)
	require.NoError(t, err)

	assert.Equal(t, canonical, Print(p))
}

func TestBuildStructure(t *testing.T) {
	p, err := Parse(canonical, ir.FeatureGC)
	require.NoError(t, err)

	assert.Equal(t, ir.FeatureGC, p.Features)
	require.Len(t, p.Types, 4)

	a, ok := p.LookupType("A")
	require.True(t, ok)
	b, ok := p.LookupType("B")
	require.True(t, ok)
	assert.Equal(t, a, p.Types[b].Super)
	assert.Len(t, p.Types[b].Fields, 3)
	assert.Equal(t, "y", p.FieldName(b, 2))
	assert.Equal(t, ir.RefType(a, true), p.Types[a].Fields[1].Type)
	assert.True(t, p.Types[a].Fields[0].Mutable)

	main := p.Function("main")
	require.NotNil(t, main)
	assert.Equal(t, ir.NoType, main.Sig)
	require.Len(t, main.Body, 8)
	get, ok := main.Body[7].(*ir.StructGet)
	require.True(t, ok)
	assert.Equal(t, 2, get.Field)
	assert.Equal(t, "", get.FieldName)

	id := p.Function("id")
	sig, _ := p.LookupType("sig")
	assert.Equal(t, sig, id.Sig)
}

func TestPrintUnnamedTypesByIndex(t *testing.T) {
	src := "(module\n (type (struct (field i32 i64)))\n (func $f\n  (drop (struct.get 0 1 (struct.new_default 0)))\n )\n)\n"

	p, err := Parse(src, ir.FeaturesAll)
	require.NoError(t, err)

	assert.Equal(t, "(module\n (type (struct (field i32) (field i64)))\n (func $f\n  (drop (struct.get 0 1 (struct.new_default 0)))\n )\n)\n", Print(p))
}

func TestPrintDropsUnreachableTypes(t *testing.T) {
	src := "(module\n (type $U (struct))\n (type (struct (field i32)))\n (func $f\n  (drop (struct.new_default 1))\n )\n)\n"

	p, err := Parse(src, ir.FeaturesAll)
	require.NoError(t, err)
	require.Len(t, p.Types, 2)

	// The surviving unnamed type is renumbered to its printed position.
	assert.Equal(t, "(module\n (type (struct (field i32)))\n (func $f\n  (drop (struct.new_default 0))\n )\n)\n", Print(p))
}

func TestUnresolvedFieldBuilds(t *testing.T) {
	src := "(module\n (type $A (struct (field $x i32)))\n (func $f (result i32)\n  (struct.get $A $gone (struct.new_default $A))\n )\n)\n"

	p, err := Parse(src, ir.FeaturesAll)
	require.NoError(t, err)

	get := p.Functions[0].Body[0].(*ir.StructGet)
	assert.Equal(t, ir.UnresolvedField, get.Field)
	assert.Equal(t, "gone", get.FieldName)
	assert.Equal(t, src, Print(p))
}

func TestConstants(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"(i32.const 0xff)", "(i32.const 255)"},
		{"(i32.const 4294967295)", "(i32.const -1)"},
		{"(i32.const 1_000)", "(i32.const 1000)"},
		{"(i64.const -9223372036854775808)", "(i64.const -9223372036854775808)"},
		{"(i64.const 18446744073709551615)", "(i64.const -1)"},
		{"(f32.const 0.5)", "(f32.const 0.5)"},
		{"(f64.const 1e3)", "(f64.const 1000)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			src := "(module\n (func $f\n  (drop " + tt.in + ")\n )\n)\n"
			p, err := Parse(src, ir.FeaturesAll)
			require.NoError(t, err)
			assert.Equal(t, "(module\n (func $f\n  (drop "+tt.want+")\n )\n)\n", Print(p))
		})
	}
}

func TestModuleNameIsIgnored(t *testing.T) {
	p, err := Parse("(module $m (global $g i32 (i32.const 1)))", ir.FeaturesAll)
	require.NoError(t, err)

	assert.Equal(t, "(module\n (global $g i32 (i32.const 1))\n)\n", Print(p))
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unbalanced", "(module", "1:1: unclosed list"},
		{"not a module", "(func $f)", "expected a single (module ...) form"},
		{"two modules", "(module) (module)", "expected a single (module ...) form"},
		{"unknown module field", "(module (memory 1))", "unexpected module field (memory 1)"},
		{"unknown type", "(module (func $f (drop (struct.new_default $Nope))))", "unknown type $Nope"},
		{"type index out of range", "(module (func $f (drop (ref.null 3))))", "type index 3 out of range"},
		{"duplicate type", "(module (type $A (struct)) (type $A (struct)))", "duplicate type name $A"},
		{"duplicate field", "(module (type $A (struct (field $x i32) (field $x i32))))", "duplicate field name $x"},
		{"unknown value type", "(module (type $A (struct (field v128))))", "unknown value type v128"},
		{"unknown instruction", "(module (func $f (i32.div_s (i32.const 1) (i32.const 2))))", "unknown instruction i32.div_s"},
		{"operand count", "(module (func $f (drop)))", "drop expects 1 operand(s), got 0"},
		{"bad literal", "(module (func $f (drop (i32.const x))))", "invalid i32 literal x"},
		{"i32 overflow", "(module (func $f (drop (i32.const 4294967296))))", "invalid i32 literal 4294967296"},
		{"unknown local", "(module (func $f (drop (local.get $q))))", "unknown local $q"},
		{"local in global", "(module (global $g i32 (local.get 0)))", "locals are not available here"},
		{"unknown global", "(module (func $f (drop (global.get $q))))", "unknown global $q"},
		{"unknown function", "(module (func $f (call $q)))", "unknown function $q"},
		{"sub wraps array", "(module (type $A (struct)) (type $B (sub $A (array i32))))", "(sub ...) must wrap a struct"},
		{"bare atom body", "(module (func $f nop))", "expected a folded instruction, got nop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, ir.FeaturesAll)
			require.Error(t, err)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseDocumentKeepsText(t *testing.T) {
	doc, err := ParseDocument(canonical)
	require.NoError(t, err)

	assert.True(t, doc.IsForm("module"))
	assert.Equal(t, 9, doc.Len())
	p, err := Build(doc, ir.FeaturesAll)
	require.NoError(t, err)
	assert.Equal(t, canonical, Print(p))
}

func TestBuildRejectsNonModule(t *testing.T) {
	doc, err := ParseDocument(canonical)
	require.NoError(t, err)

	_, err = Build(doc.At(1), ir.FeaturesAll)
	assert.ErrorContains(t, err, "expected (module ...), got type")
}

func TestForwardReferences(t *testing.T) {
	src := "(module\n (global $g i32 (call $later))\n (func $later (result i32)\n  (global.get $h)\n )\n)\n"
	_, err := Parse(src, ir.FeaturesAll)
	assert.ErrorContains(t, err, "unknown global $h")

	src = "(module\n (type $A (struct (field $b (ref null $B))))\n (type $B (struct))\n (global $g (ref null $A) (ref.null $A))\n)\n"
	p, err := Parse(src, ir.FeaturesAll)
	require.NoError(t, err)
	assert.Equal(t, src, Print(p))
}
