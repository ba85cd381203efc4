package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/passes"
	"github.com/roach88/typedce/internal/validator"
	"github.com/roach88/typedce/internal/wat"
)

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Parse the input with the scenario's features
// 2. Run the configured passes, recording every trial
// 3. Evaluate assertions against the output and the trial log
// 4. Check the run invariants
//
// An error is returned only when the scenario cannot run at all: the input
// does not parse, a pass name is unknown, or a pass hits an internal
// defect. Failed assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	features, err := ir.ParseFeatures(scenario.FeatureNames())
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	p, err := wat.Parse(scenario.Input, features)
	if err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}
	input := p.Clone()

	result := NewResult()
	result.InputValid = validator.Valid(p)

	var defect error
	opts := []passes.Option{
		passes.WithRecorder(result),
		passes.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		passes.WithAbort(func(err error) { defect = err }),
	}
	if scenario.Verdicts != nil {
		opts = append(opts, passes.WithOracle(sequenceOracle(scenario.Verdicts)))
	}

	runner, err := passes.NewRunner(scenario.PassNames(), opts...)
	if err != nil {
		return nil, err
	}
	runner.Run(p)
	if defect != nil {
		return nil, defect
	}

	for _, pass := range runner.Passes {
		if dce, ok := pass.(*passes.TypeDCE); ok {
			s := dce.Stats()
			result.Sweeps++
			result.Stats.Iterations += s.Iterations
			result.Stats.Trials += s.Trials
			result.Stats.Commits += s.Commits
			result.Stats.Rejections += s.Rejections
		}
	}
	result.Program = p
	result.Output = wat.Print(p)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	for _, msg := range CheckInvariants(input, result, scenario.Verdicts == nil) {
		result.AddError(msg)
	}
	return result, nil
}

// sequenceOracle answers with verdicts in order and rejects once they run
// out.
func sequenceOracle(verdicts []bool) passes.Oracle {
	next := 0
	return passes.OracleFunc(func(*ir.Program) bool {
		if next >= len(verdicts) {
			return false
		}
		v := verdicts[next]
		next++
		return v
	})
}
