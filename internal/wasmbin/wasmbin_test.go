package wasmbin

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/testutil"
	"github.com/roach88/typedce/internal/wat"
)

var sample = testutil.Module(
	`(type $A (struct (field $x (mut i32)) (field $next (ref null $A))))`,
	`(type $B (sub $A (struct (field $x (mut i32)) (field $next (ref null $A)) (field f64))))`,
	`(type $arr (array (mut i64)))`,
	`(type $sig (func (param i32) (result i32)))`,
	`(global $count (mut i32) (i32.const 0))`,
	`(global $nil (ref null $A) (ref.null $A))`,
	`(func $id (type $sig) (param $n i32) (result i32)
  (local.get $n)
 )`,
	`(func $main (result f64)
  (local $b (ref null $B))
  (local i64)
  (local.set $b (struct.new $B (i32.const -7) (ref.null $A) (f64.const 2.5)))
  (struct.set $B $x (local.get $b) (call $id (i32.const 3)))
  (global.set $count (i32.add (global.get $count) (i32.const 1)))
  (local.set 1 (array.get $arr (array.new $arr (i64.const 5) (i32.const 2)) (i32.const 0)))
  (drop (array.len (array.new_default $arr (i32.const 1))))
  (drop (ref.is_null (local.get $b)))
  (nop)
  (struct.get $B 2 (local.get $b))
 )`,
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := testutil.MustParse(t, sample)

	got, err := Decode(Encode(p))
	require.NoError(t, err)

	assert.Equal(t, ir.FeatureSet(0), got.Features)
	assert.Equal(t, sample, wat.Print(got))
}

func TestEncodeIsDeterministic(t *testing.T) {
	p := testutil.MustParse(t, sample)

	first := Encode(p)
	decoded, err := Decode(first)
	require.NoError(t, err)

	assert.Equal(t, first, Encode(p))
	assert.Equal(t, first, Encode(decoded))
}

func TestEncodeDropsUnreachableTypes(t *testing.T) {
	p := testutil.MustParse(t, testutil.Module(
		`(type $Dead (struct (field i32)))`,
		`(type $Live (struct (field $v i64)))`,
		`(func $f
  (drop (struct.new_default $Live))
 )`,
	))

	got, err := Decode(Encode(p))
	require.NoError(t, err)

	require.Len(t, got.Types, 1)
	_, ok := got.LookupType("Dead")
	assert.False(t, ok)
	live, ok := got.LookupType("Live")
	require.True(t, ok)
	assert.Equal(t, ir.HeapType(0), live)
	assert.Equal(t, "v", got.FieldName(live, 0))
}

func TestUnresolvedFieldSurvives(t *testing.T) {
	src := testutil.Module(
		`(type $A (struct (field $x i32)))`,
		`(func $f (result i32)
  (struct.get $A $gone (struct.new_default $A))
 )`,
	)
	p := testutil.MustParse(t, src)

	got, err := Decode(Encode(p))
	require.NoError(t, err)

	get := got.Functions[0].Body[0].(*ir.StructGet)
	assert.Equal(t, ir.UnresolvedField, get.Field)
	assert.Equal(t, "gone", get.FieldName)
	assert.Equal(t, src, wat.Print(got))
}

func TestDecodeErrors(t *testing.T) {
	// module builds a fresh version record followed by one nested record.
	module := func(num protowire.Number, msg []byte) []byte {
		b := appendVarint(nil, modVersion, ir.FormatVersion)
		return appendMessage(b, num, msg)
	}
	refTo := func(heap uint64) []byte {
		v := appendVarint(nil, valKind, uint64(ir.Ref))
		return appendVarint(v, valHeap, heap)
	}
	global := func(typ []byte) []byte {
		g := appendString(nil, globalName, "g")
		return module(modGlobal, appendMessage(g, globalType, typ))
	}
	body := func(expr []byte) []byte {
		f := appendString(nil, funcName, "f")
		return module(modFunction, appendMessage(f, funcBody, expr))
	}
	withStruct := func(expr []byte) []byte {
		b := module(modType, appendVarint(nil, typeKind, uint64(ir.KindStruct)))
		f := appendString(nil, funcName, "f")
		return appendMessage(b, modFunction, appendMessage(f, funcBody, expr))
	}

	valid := Encode(testutil.MustParse(t, sample))

	tests := []struct {
		name    string
		data    []byte
		section string
		want    string
	}{
		{
			name:    "missing version",
			data:    nil,
			section: "module",
			want:    "unsupported format version 0",
		},
		{
			name:    "future version",
			data:    appendVarint(nil, modVersion, ir.FormatVersion+1),
			section: "module",
			want:    "unsupported format version 2",
		},
		{
			name:    "truncated",
			data:    valid[:len(valid)-1],
			section: "module",
			want:    "unexpected EOF",
		},
		{
			name:    "dangling heap reference",
			data:    global(refTo(5)),
			section: "global 0",
			want:    "heap type reference 5 out of range",
		},
		{
			name:    "reference without heap",
			data:    global(appendVarint(nil, valKind, uint64(ir.Ref))),
			section: "global 0",
			want:    "reference without heap type",
		},
		{
			name:    "bad value kind",
			data:    global(appendVarint(nil, valKind, 42)),
			section: "global 0",
			want:    "invalid value kind 42",
		},
		{
			name:    "bad type kind",
			data:    module(modType, appendVarint(nil, typeKind, 9)),
			section: "type 0",
			want:    "invalid type kind 9",
		},
		{
			name:    "operand count",
			data:    body(appendVarint(nil, exprOp, opDrop)),
			section: "function 0",
			want:    "takes 1 operand(s), got 0",
		},
		{
			name:    "zero heap reference",
			data:    withStruct(appendVarint(appendVarint(nil, exprOp, opRefNull), exprType, 0)),
			section: "function 0",
			want:    "heap type reference 0 out of range",
		},
		{
			name:    "unknown opcode",
			data:    withStruct(appendVarint(appendVarint(nil, exprOp, 99), exprType, 1)),
			section: "function 0",
			want:    "unknown opcode 99",
		},
		{
			name:    "binary operand count",
			data:    body(appendVarint(nil, exprOp, opBinary)),
			section: "function 0",
			want:    "takes 2 operand(s), got 0",
		},
		{
			name:    "struct op without type",
			data:    body(appendVarint(nil, exprOp, opStructNewDefault)),
			section: "function 0",
			want:    "needs a heap type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.section, de.Section)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeSkipsUnknownRecords(t *testing.T) {
	data := Encode(testutil.MustParse(t, sample))
	data = protowire.AppendTag(data, 15, protowire.Fixed32Type)
	data = protowire.AppendFixed32(data, 7)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, sample, wat.Print(got))
}

func TestDump(t *testing.T) {
	out := Dump([]byte{0x08, 0x01})
	assert.Contains(t, out, "08 01")
}

func TestDecode_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("arbitrary input never panics", prop.ForAll(
		func(data []uint8) bool {
			_, _ = Decode(data)
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	valid := Encode(testutil.MustParse(t, sample))
	properties.Property("corrupting one byte never panics", prop.ForAll(
		func(pos int, b uint8) bool {
			data := append([]byte(nil), valid...)
			data[pos%len(data)] = b
			_, _ = Decode(data)
			return true
		},
		gen.IntRange(0, 1<<16),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
