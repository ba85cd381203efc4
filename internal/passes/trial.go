package passes

import (
	"fmt"

	"github.com/roach88/typedce/internal/ir"
)

// Oracle decides whether a candidate program is well-typed. A false verdict
// is an ordinary outcome.
type Oracle interface {
	Valid(p *ir.Program) bool
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(p *ir.Program) bool

// Valid calls f(p).
func (f OracleFunc) Valid(p *ir.Program) bool { return f(p) }

// Verdict is the oracle's answer for one trial.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
)

// Trial describes one speculative removal and its verdict.
type Trial struct {
	Seq        int // 1-based position within the run
	TypeName   string
	FieldIndex int
	FieldName  string
	Verdict    Verdict
	Candidate  string // ir.SnapshotHash of the candidate program
}

func (t Trial) String() string {
	return fmt.Sprintf("#%d $%s[%d] %s", t.Seq, t.TypeName, t.FieldIndex, t.Verdict)
}

// TrialRecorder receives every trial as it happens. A recorder error is
// logged and otherwise ignored.
type TrialRecorder interface {
	RecordTrial(t Trial) error
}

// Stats counts the work done by one run of the pass.
type Stats struct {
	Iterations int `json:"iterations"`
	Trials     int `json:"trials"`
	Commits    int `json:"commits"`
	Rejections int `json:"rejections"`
}

// DefectError reports text produced by the pass itself that fails to
// parse. It means the printer or the mutator is broken; it is never caused
// by the input program.
type DefectError struct {
	Stage    string // "snapshot" or "candidate"
	Document string
	Err      error
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("internal defect: %s does not parse: %v", e.Stage, e.Err)
}

func (e *DefectError) Unwrap() error { return e.Err }
