package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/testutil"
	"github.com/roach88/typedce/internal/wat"
)

func TestRoundTrip_PreservesReachableProgram(t *testing.T) {
	src := testutil.Module(
		`(type $A (struct (field $x i32) (field $next (mut (ref null $A)))))`,
		`(type $V (array (mut f64)))`,
		`(type $S (func (param i32) (result i32)))`,
		`(global $g (mut (ref null $A)) (ref.null $A))`,
		`(func $id (type $S) (param $p i32) (result i32)
  (local $v (ref null $V))
  (local.set $v (array.new_default $V (i32.const 4)))
  (i32.add (local.get $p) (array.len (local.get $v)))
 )`,
	)
	p := testutil.MustParseWith(t, src, ir.FeatureGC|ir.FeatureReferenceTypes)

	NewRoundTrip(WithLogger(quietLogger()), WithAbort(panicAbort(t))).Run(p)

	assert.Equal(t, src, wat.Print(p))
	assert.Equal(t, ir.FeatureGC|ir.FeatureReferenceTypes, p.Features)
}

func TestRoundTrip_DropsUnreachableTypes(t *testing.T) {
	p := testutil.MustParse(t, testutil.Module(
		`(type $Dead (struct (field $d i32)))`,
		`(type $A (struct (field $x i32)))`,
		`(global $g (ref null $A) (ref.null $A))`,
	))
	assert.Len(t, p.Types, 2)

	NewRoundTrip(WithLogger(quietLogger()), WithAbort(panicAbort(t))).Run(p)

	assert.Len(t, p.Types, 1)
	h, ok := p.LookupType("A")
	assert.True(t, ok)
	assert.Equal(t, ir.HeapType(0), h)
	_, ok = p.LookupType("Dead")
	assert.False(t, ok)
}
