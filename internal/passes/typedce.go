package passes

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/validator"
	"github.com/roach88/typedce/internal/wat"
)

// ExitDefect is the process exit status used by DefaultAbort.
const ExitDefect = 70

// Outcome is the result of one iteration.
type Outcome int

const (
	// Exhausted means no candidate is left at or after the cursor.
	Exhausted Outcome = iota
	// Pruned means a field was removed and the program replaced.
	Pruned
	// Rejected means the oracle refused the candidate; the cursor moved on.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Exhausted:
		return "exhausted"
	case Pruned:
		return "pruned"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// TypeDCE removes struct fields that the program does not need.
//
// The pass is synchronous and assumes exclusive ownership of the program
// for the duration of Run.
type TypeDCE struct {
	oracle   Oracle
	recorder TrialRecorder
	logger   *slog.Logger
	abort    func(error)
	stats    Stats
}

// NewTypeDCE returns the pass configured by opts. The default oracle is the
// validator.
func NewTypeDCE(opts ...Option) *TypeDCE {
	s := newSettings(opts)
	return &TypeDCE{
		oracle:   s.oracle,
		recorder: s.recorder,
		logger:   s.logger,
		abort:    s.abort,
	}
}

// Name implements Pass.
func (d *TypeDCE) Name() string { return "type-dce" }

// Stats returns the counters of the most recent Run.
func (d *TypeDCE) Stats() Stats { return d.stats }

// Run prunes p until no candidate is left. p is only ever replaced by a
// program the oracle accepted.
func (d *TypeDCE) Run(p *ir.Program) {
	d.stats = Stats{}
	var cur Cursor
	for {
		d.stats.Iterations++
		var out Outcome
		out, cur = d.iteration(p, cur)
		if out == Exhausted {
			break
		}
	}
	d.logger.Info("type-dce finished",
		"iterations", d.stats.Iterations,
		"trials", d.stats.Trials,
		"commits", d.stats.Commits,
		"rejections", d.stats.Rejections,
	)
}

// iteration makes at most one trial starting at cur and returns the cursor
// for the next one.
func (d *TypeDCE) iteration(p *ir.Program, cur Cursor) (Outcome, Cursor) {
	types, _ := ir.CollectHeapTypes(p)
	EnsureNames(p, types)

	snapshot := wat.Print(p)
	doc, err := wat.ParseDocument(snapshot)
	if err != nil {
		d.abort(&DefectError{Stage: "snapshot", Document: snapshot, Err: err})
		return Exhausted, cur
	}

	cand, at, ok := Search(doc, cur)
	if !ok {
		return Exhausted, cur
	}

	next, err := wat.Build(cand.Document, p.Features)
	if err != nil {
		d.abort(&DefectError{Stage: "candidate", Document: cand.Document.Format(), Err: err})
		return Exhausted, cur
	}

	valid := d.oracle.Valid(next)
	d.stats.Trials++
	trial := Trial{
		Seq:        d.stats.Trials,
		TypeName:   cand.TypeName,
		FieldIndex: cand.FieldIndex,
		FieldName:  cand.FieldName,
		Verdict:    VerdictRejected,
		Candidate:  ir.SnapshotHash(wat.Print(next)),
	}
	if valid {
		trial.Verdict = VerdictAccepted
	}
	d.logger.Debug("trial",
		"type", cand.TypeName,
		"field", cand.FieldIndex,
		"name", cand.FieldName,
		"verdict", string(trial.Verdict),
	)
	if d.recorder != nil {
		if err := d.recorder.RecordTrial(trial); err != nil {
			d.logger.Warn("trial not recorded", "seq", trial.Seq, "error", err)
		}
	}

	if !valid {
		d.stats.Rejections++
		return Rejected, at.Advance()
	}

	ir.ClearProgram(p)
	ir.CopyProgram(next, p)
	d.stats.Commits++
	d.logger.Info("field pruned", "type", cand.TypeName, "field", cand.FieldIndex, "name", cand.FieldName)
	return Pruned, at
}

// DefaultAbort writes err and, for a DefectError, the offending document to
// stderr and exits with ExitDefect.
func DefaultAbort(err error) {
	writeDefect(os.Stderr, err)
	os.Exit(ExitDefect)
}

func writeDefect(w io.Writer, err error) {
	fmt.Fprintf(w, "fatal: %v\n", err)
	if de, ok := err.(*DefectError); ok {
		fmt.Fprintf(w, "--- %s ---\n%s\n", de.Stage, de.Document)
	}
}

var _ Oracle = validator.Oracle{}
