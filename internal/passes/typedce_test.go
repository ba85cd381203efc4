package passes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/testutil"
	"github.com/roach88/typedce/internal/validator"
	"github.com/roach88/typedce/internal/wat"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runTypeDCE(t *testing.T, p *ir.Program, opts ...Option) (*TypeDCE, *trialLog) {
	t.Helper()
	log := &trialLog{}
	base := []Option{WithLogger(quietLogger()), WithRecorder(log), WithAbort(panicAbort(t))}
	pass := NewTypeDCE(append(base, opts...)...)
	pass.Run(p)
	return pass, log
}

func TestTypeDCE_RemovesUnreadField(t *testing.T) {
	p := testutil.MustParse(t, testutil.Module(
		`(type $A (struct (field $x i32) (field $y i64)))`,
		`(func $main (result i32)
  (struct.get $A $x (struct.new_default $A))
 )`,
	))

	pass, log := runTypeDCE(t, p)

	assert.Equal(t, testutil.Module(
		`(type $A (struct (field $x i32)))`,
		`(func $main (result i32)
  (struct.get $A $x (struct.new_default $A))
 )`,
	), wat.Print(p))
	assert.Equal(t, Stats{Iterations: 3, Trials: 2, Commits: 1, Rejections: 1}, pass.Stats())
	require.Len(t, log.trials, 2)
	assert.NotEqual(t, log.trials[0].Candidate, log.trials[1].Candidate)
	for i := range log.trials {
		assert.Len(t, log.trials[i].Candidate, 64)
		log.trials[i].Candidate = ""
	}
	assert.Equal(t, Trial{Seq: 1, TypeName: "A", FieldIndex: 0, FieldName: "x", Verdict: VerdictRejected}, log.trials[0])
	assert.Equal(t, Trial{Seq: 2, TypeName: "A", FieldIndex: 1, FieldName: "y", Verdict: VerdictAccepted}, log.trials[1])
	assert.True(t, validator.Valid(p))
}

func TestTypeDCE_KeepsRequiredFields(t *testing.T) {
	src := testutil.Module(
		`(type $A (struct (field $x i32) (field $y i64)))`,
		`(func $main (result i64)
  (local $a (ref null $A))
  (local.set $a (struct.new_default $A))
  (drop (struct.get $A $x (local.get $a)))
  (struct.get $A $y (local.get $a))
 )`,
	)
	p := testutil.MustParse(t, src)

	pass, log := runTypeDCE(t, p)

	assert.Equal(t, src, wat.Print(p))
	assert.Equal(t, Stats{Iterations: 3, Trials: 2, Commits: 0, Rejections: 2}, pass.Stats())
	for _, tr := range log.trials {
		assert.Equal(t, VerdictRejected, tr.Verdict)
	}
}

func TestTypeDCE_SubtypeCascade(t *testing.T) {
	p := testutil.MustParse(t, testutil.Module(
		`(type $A (struct (field $x i32) (field $y f32)))`,
		`(type $B (sub $A (struct (field $x i32) (field $y f32) (field $z i64))))`,
		`(func $main (result i64)
  (local $b (ref null $B))
  (local.set $b (struct.new_default $B))
  (drop (struct.get $A $x (local.get $b)))
  (struct.get $B $z (local.get $b))
 )`,
	))

	pass, log := runTypeDCE(t, p)

	assert.Equal(t, []string{"x"}, fieldNames(p, "A"))
	assert.Equal(t, []string{"x", "z"}, fieldNames(p, "B"))
	assert.Equal(t, Stats{Iterations: 6, Trials: 5, Commits: 2, Rejections: 3}, pass.Stats())

	assert.Equal(t, []string{
		"#1 $A[0] rejected",
		"#2 $A[1] accepted",
		"#3 $B[0] rejected",
		"#4 $B[1] accepted",
		"#5 $B[1] rejected",
	}, trialLines(log))
}

func TestTypeDCE_RemovedReferenceDropsType(t *testing.T) {
	p := testutil.MustParse(t, testutil.Module(
		`(type $A (struct (field $x i32) (field $b (ref null $B))))`,
		`(type $B (struct (field $y i32)))`,
		`(func $main (result i32)
  (struct.get $A $x (struct.new_default $A))
 )`,
	))

	pass, _ := runTypeDCE(t, p)

	assert.Equal(t, testutil.Module(
		`(type $A (struct (field $x i32)))`,
		`(func $main (result i32)
  (struct.get $A $x (struct.new_default $A))
 )`,
	), wat.Print(p))
	assert.Equal(t, 2, pass.Stats().Trials)
}

func TestTypeDCE_RejectedFieldNotRetried(t *testing.T) {
	// $Child sorts before $Parent, so its fields are tried while $Parent
	// still pins them. They are not revisited after $Parent shrinks.
	p := testutil.MustParse(t, testutil.Module(
		`(type $Parent (struct (field $x i32) (field $y f32)))`,
		`(type $Child (sub $Parent (struct (field $x i32) (field $y f32) (field $z i64))))`,
		`(func $main (result i64)
  (local $c (ref null $Child))
  (local.set $c (struct.new_default $Child))
  (drop (struct.get $Parent $x (local.get $c)))
  (struct.get $Child $z (local.get $c))
 )`,
	))

	pass, log := runTypeDCE(t, p)

	assert.Equal(t, []string{"x"}, fieldNames(p, "Parent"))
	assert.Equal(t, []string{"x", "y", "z"}, fieldNames(p, "Child"))
	assert.Equal(t, Stats{Iterations: 6, Trials: 5, Commits: 1, Rejections: 4}, pass.Stats())
	assert.Equal(t, []string{
		"#1 $Child[0] rejected",
		"#2 $Child[1] rejected",
		"#3 $Child[2] rejected",
		"#4 $Parent[0] rejected",
		"#5 $Parent[1] accepted",
	}, trialLines(log))
	for i := 1; i < len(log.trials); i++ {
		prev := Cursor{Type: log.trials[i-1].TypeName, Field: log.trials[i-1].FieldIndex}
		cur := Cursor{Type: log.trials[i].TypeName, Field: log.trials[i].FieldIndex}
		assert.True(t, prev.Less(cur), "trial %d went from %s to %s", i, prev, cur)
	}

	// A second run starts from a fresh cursor and picks up $Child.y.
	pass, log = runTypeDCE(t, p)

	assert.Equal(t, []string{"x"}, fieldNames(p, "Parent"))
	assert.Equal(t, []string{"x", "z"}, fieldNames(p, "Child"))
	assert.Equal(t, Stats{Iterations: 5, Trials: 4, Commits: 1, Rejections: 3}, pass.Stats())
	assert.Equal(t, []string{
		"#1 $Child[0] rejected",
		"#2 $Child[1] accepted",
		"#3 $Child[1] rejected",
		"#4 $Parent[0] rejected",
	}, trialLines(log))
	assert.True(t, validator.Valid(p))
}

func TestTypeDCE_NamesUnnamedTypes(t *testing.T) {
	p := testutil.MustParse(t, testutil.Module(
		`(type (struct (field i32) (field i64)))`,
		`(func $main (result i32)
  (struct.get 0 0 (struct.new_default 0))
 )`,
	))

	runTypeDCE(t, p)

	assert.Equal(t, testutil.Module(
		`(type $type (struct (field $field i32)))`,
		`(func $main (result i32)
  (struct.get $type $field (struct.new_default $type))
 )`,
	), wat.Print(p))
}

func TestTypeDCE_EmptyProgram(t *testing.T) {
	p := ir.NewProgram(ir.FeaturesAll)
	pass, log := runTypeDCE(t, p)
	assert.Equal(t, Stats{Iterations: 1}, pass.Stats())
	assert.Empty(t, log.trials)
}

func TestTypeDCE_CopiesFeatures(t *testing.T) {
	p := testutil.MustParse(t, testutil.Module(
		`(type $A (struct (field $x i32)))`,
		`(global $g (ref null $A) (ref.null $A))`,
	))
	var seen []ir.FeatureSet
	oracle := OracleFunc(func(c *ir.Program) bool {
		seen = append(seen, c.Features)
		return true
	})

	runTypeDCE(t, p, WithOracle(oracle))

	require.Len(t, seen, 1)
	assert.Equal(t, ir.FeaturesAll, seen[0])
	assert.Equal(t, ir.FeaturesAll, p.Features)
}

func TestTypeDCE_RejectionLeavesProgramUntouched(t *testing.T) {
	p := testutil.MustParse(t, testutil.Module(
		`(type $A (struct (field $x i32) (field $y i32)))`,
		`(global $g (ref null $A) (ref.null $A))`,
	))
	before := wat.Print(p)

	oracle := &testutil.RecordingOracle{Inner: testutil.NewSequenceOracle().Valid}
	pass, _ := runTypeDCE(t, p, WithOracle(oracle))

	assert.Equal(t, before, wat.Print(p))
	assert.Equal(t, 2, pass.Stats().Rejections)
	require.Equal(t, 2, oracle.Calls())
	assert.Equal(t, []bool{false, false}, oracle.Verdicts)
	assert.Contains(t, oracle.Seen[0], "(type $A (struct (field $y i32)))")
	assert.Contains(t, oracle.Seen[1], "(type $A (struct (field $x i32)))")
}

func TestTypeDCE_RecorderErrorsAreLogged(t *testing.T) {
	p := testutil.MustParse(t, testutil.Module(
		`(type $A (struct (field $x i32)))`,
		`(global $g (ref null $A) (ref.null $A))`,
	))
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pass := NewTypeDCE(
		WithLogger(logger),
		WithRecorder(failingRecorder{}),
		WithAbort(panicAbort(t)),
	)
	pass.Run(p)

	assert.Equal(t, 1, pass.Stats().Commits)
	assert.Contains(t, buf.String(), "trial not recorded")
	assert.Contains(t, buf.String(), "level=DEBUG msg=trial")
	assert.NotContains(t, buf.String(), "level=ERROR")
}

type failingRecorder struct{}

func (failingRecorder) RecordTrial(Trial) error { return errors.New("disk full") }

func TestTypeDCE_CandidateDefectAborts(t *testing.T) {
	p := ir.NewProgram(ir.FeaturesAll)
	a := p.AddType(ir.NewStruct(ir.Field{Type: ir.TypeI32}))
	p.Globals = append(p.Globals, &ir.Global{Name: "bad name", Type: ir.RefType(a, true), Init: &ir.RefNull{Type: a}})

	var aborted []error
	pass := NewTypeDCE(WithLogger(quietLogger()), WithAbort(func(err error) { aborted = append(aborted, err) }))
	pass.Run(p)

	require.Len(t, aborted, 1)
	var defect *DefectError
	require.True(t, errors.As(aborted[0], &defect))
	assert.Equal(t, "candidate", defect.Stage)
	assert.Contains(t, defect.Document, "$bad name")
	var syntax *wat.SyntaxError
	assert.True(t, errors.As(aborted[0], &syntax))
	assert.Equal(t, 0, pass.Stats().Trials)
}

func TestTypeDCE_SnapshotDefectAborts(t *testing.T) {
	p := ir.NewProgram(ir.FeaturesAll)
	a := p.AddType(ir.NewStruct(ir.Field{Type: ir.TypeI32}))
	p.Names(a).Name = "open("
	p.Globals = append(p.Globals, &ir.Global{Name: "g", Type: ir.RefType(a, true), Init: &ir.RefNull{Type: a}})

	var aborted []error
	pass := NewTypeDCE(WithLogger(quietLogger()), WithAbort(func(err error) { aborted = append(aborted, err) }))
	pass.Run(p)

	require.Len(t, aborted, 1)
	var defect *DefectError
	require.True(t, errors.As(aborted[0], &defect))
	assert.Equal(t, "snapshot", defect.Stage)
}

func TestWriteDefect(t *testing.T) {
	var buf bytes.Buffer
	writeDefect(&buf, &DefectError{Stage: "candidate", Document: "(module)", Err: errors.New("boom")})
	assert.Equal(t, "fatal: internal defect: candidate does not parse: boom\n--- candidate ---\n(module)\n", buf.String())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "pruned", Pruned.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}

// pruneProgram builds a program from generated bytes. Each byte is one
// struct $T<i>: bits 0-1 give the field count and bits 2-5 mark which
// fields main reads. It returns the names main reads, per type.
func pruneProgram(layout []uint8) (string, map[string][]string) {
	if len(layout) > 4 {
		layout = layout[:4]
	}
	var decls, body []string
	want := map[string][]string{}
	kinds := []string{"i32", "i64", "f32", "f64"}
	for i, b := range layout {
		name := fmt.Sprintf("T%d", i)
		n := int(b & 3)
		var fields []string
		want[name] = []string{}
		for j := 0; j < n; j++ {
			fname := fmt.Sprintf("f%d", j)
			fields = append(fields, fmt.Sprintf("(field $%s %s)", fname, kinds[(i+j)%4]))
			if b&(1<<(2+j)) != 0 {
				want[name] = append(want[name], fname)
				body = append(body, fmt.Sprintf("(drop (struct.get $%s $%s (struct.new_default $%s)))", name, fname, name))
			}
		}
		decls = append(decls, fmt.Sprintf("(type $%s (struct %s))", name, strings.Join(fields, " ")))
		decls = append(decls, fmt.Sprintf("(global $g%d (ref null $%s) (ref.null $%s))", i, name, name))
	}
	fn := "(func $main\n"
	for _, e := range body {
		fn += "  " + e + "\n"
	}
	fn += " )"
	return testutil.Module(append(decls, fn)...), want
}

func TestTypeDCE_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("exactly the read fields survive", prop.ForAll(
		func(layout []uint8) bool {
			src, want := pruneProgram(layout)
			p, err := wat.Parse(src, ir.FeaturesAll)
			if err != nil {
				return false
			}
			NewTypeDCE(WithLogger(quietLogger()), WithAbort(func(error) {})).Run(p)
			for name, fields := range want {
				if !assert.ObjectsAreEqual(fields, fieldNames(p, name)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("every committed state is valid", prop.ForAll(
		func(layout []uint8) bool {
			src, _ := pruneProgram(layout)
			p, err := wat.Parse(src, ir.FeaturesAll)
			if err != nil {
				return false
			}
			ok := true
			oracle := OracleFunc(func(c *ir.Program) bool {
				return validator.Valid(c)
			})
			recorder := recorderFunc(func(Trial) error {
				ok = ok && validator.Valid(p)
				return nil
			})
			NewTypeDCE(WithLogger(quietLogger()), WithOracle(oracle), WithRecorder(recorder), WithAbort(func(error) { ok = false })).Run(p)
			return ok && validator.Valid(p)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("each field is tried once and the cursor never goes back", prop.ForAll(
		func(layout []uint8) bool {
			src, want := pruneProgram(layout)
			p, err := wat.Parse(src, ir.FeaturesAll)
			if err != nil {
				return false
			}
			total := 0
			for i, b := range layout {
				if i < 4 {
					total += int(b & 3)
				}
			}
			kept := 0
			for _, fields := range want {
				kept += len(fields)
			}

			log := &trialLog{}
			pass := NewTypeDCE(WithLogger(quietLogger()), WithRecorder(log), WithAbort(func(error) {}))
			pass.Run(p)

			s := pass.Stats()
			if s.Trials != total || s.Commits != total-kept || s.Iterations != total+1 {
				return false
			}
			for i := 1; i < len(log.trials); i++ {
				prev, cur := log.trials[i-1], log.trials[i]
				a := Cursor{Type: prev.TypeName, Field: prev.FieldIndex}
				b := Cursor{Type: cur.TypeName, Field: cur.FieldIndex}
				if b.Less(a) {
					return false
				}
				if a == b && prev.Verdict != VerdictAccepted {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

type recorderFunc func(Trial) error

func (f recorderFunc) RecordTrial(t Trial) error { return f(t) }
