package harness

import (
	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/passes"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion and run invariant held.
	Pass bool `json:"pass"`

	// Output is the printed program after all passes ran.
	Output string `json:"output"`

	// Trials holds every trial in the order the passes made them.
	Trials []passes.Trial `json:"trials"`

	// Stats sums the counters of every type-dce pass in the run.
	Stats passes.Stats `json:"stats"`

	// Sweeps counts the type-dce passes that ran.
	Sweeps int `json:"sweeps"`

	// InputValid records the validator's verdict on the input program.
	InputValid bool `json:"input_valid"`

	// Errors contains assertion and invariant failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Program is the final program. Not serialized.
	Program *ir.Program `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trials: []passes.Trial{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// RecordTrial implements passes.TrialRecorder.
func (r *Result) RecordTrial(t passes.Trial) error {
	r.Trials = append(r.Trials, t)
	return nil
}

// TrialLines returns the trials in their one-line form.
func (r *Result) TrialLines() []string {
	lines := make([]string, len(r.Trials))
	for i, t := range r.Trials {
		lines[i] = t.String()
	}
	return lines
}
