package harness

import (
	"fmt"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/passes"
	"github.com/roach88/typedce/internal/validator"
)

// CheckInvariants verifies the properties every run must have, whatever
// the scenario asserts. input is the program before any pass ran. When
// validated is false the oracle was scripted, so validity of the output
// says nothing about the pass and is not checked.
func CheckInvariants(input *ir.Program, result *Result, validated bool) []string {
	var errs []string
	errs = append(errs, checkAccounting(result)...)
	errs = append(errs, checkCursorOrder(result.Trials)...)
	if validated && result.InputValid && !validator.Valid(result.Program) {
		errs = append(errs, "invariant: a valid input produced an invalid output")
	}
	if before, after := structFieldCount(input), structFieldCount(result.Program); after > before {
		errs = append(errs, fmt.Sprintf("invariant: struct fields grew from %d to %d", before, after))
	}
	return errs
}

// checkAccounting ties the counters to the trial log. Every sweep ends
// with exactly one iteration that finds nothing to try.
func checkAccounting(result *Result) []string {
	var errs []string
	s := result.Stats
	if s.Trials != len(result.Trials) {
		errs = append(errs, fmt.Sprintf("invariant: %d trials counted, %d recorded", s.Trials, len(result.Trials)))
	}
	if s.Commits+s.Rejections != s.Trials {
		errs = append(errs, fmt.Sprintf("invariant: commits %d + rejections %d != trials %d", s.Commits, s.Rejections, s.Trials))
	}
	if s.Iterations != s.Trials+result.Sweeps {
		errs = append(errs, fmt.Sprintf("invariant: %d iterations for %d trials in %d sweep(s)", s.Iterations, s.Trials, result.Sweeps))
	}
	accepted := 0
	for _, t := range result.Trials {
		if t.Verdict == passes.VerdictAccepted {
			accepted++
		}
	}
	if accepted != s.Commits {
		errs = append(errs, fmt.Sprintf("invariant: %d accepted trials but %d commits", accepted, s.Commits))
	}
	return errs
}

// checkCursorOrder verifies that within a sweep the cursor never moves
// backwards, and moves strictly forward after a rejection. An accepted
// removal may retry the same position, which now holds the next field.
func checkCursorOrder(trials []passes.Trial) []string {
	var errs []string
	for i := 1; i < len(trials); i++ {
		prev, cur := trials[i-1], trials[i]
		if cur.Seq == 1 {
			continue // a new sweep starts
		}
		from := passes.Cursor{Type: prev.TypeName, Field: prev.FieldIndex}
		to := passes.Cursor{Type: cur.TypeName, Field: cur.FieldIndex}
		switch {
		case to.Less(from):
			errs = append(errs, fmt.Sprintf("invariant: trial %s moved back from %s", cur, from))
		case prev.Verdict == passes.VerdictRejected && !from.Less(to):
			errs = append(errs, fmt.Sprintf("invariant: trial %s retried rejected %s", cur, from))
		}
	}
	return errs
}

// structFieldCount sums the fields of the struct types the printer emits.
func structFieldCount(p *ir.Program) int {
	types, _ := ir.CollectHeapTypes(p)
	n := 0
	for _, h := range types {
		if def := p.Type(h); def.IsStruct() {
			n += len(def.Fields)
		}
	}
	return n
}
