package harness

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/passes"
	"github.com/roach88/typedce/internal/validator"
)

// AssertionError is returned when an assertion fails.
// It includes the trial log to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Trials   []string // Trial log for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trials) > 0 {
		fmt.Fprintf(&buf, "\nTrials:\n")
		for _, line := range e.Trials {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertValid:
		return assertValid(result)
	case AssertTypePresent:
		return assertTypePresence(result, a, true)
	case AssertTypeAbsent:
		return assertTypePresence(result, a, false)
	case AssertFields:
		return assertFields(result, a)
	case AssertTrialOrder:
		return assertTrialOrder(result, a)
	case AssertTrialCount:
		return assertTrialCount(result, a)
	case AssertStats:
		return assertStats(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertValid(result *Result) error {
	errs := validator.Validate(result.Program)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &AssertionError{
		Type:     AssertValid,
		Expected: "output passes validation",
		Actual:   strings.Join(msgs, "; "),
		Trials:   result.TrialLines(),
	}
}

// printedType finds a named type among the types the printer emits.
func printedType(p *ir.Program, name string) (ir.HeapType, bool) {
	types, _ := ir.CollectHeapTypes(p)
	for _, h := range types {
		if p.TypeName(h) == name {
			return h, true
		}
	}
	return ir.NoType, false
}

func assertTypePresence(result *Result, a Assertion, want bool) error {
	_, found := printedType(result.Program, a.Name)
	if found == want {
		return nil
	}
	expected, actual := "type $"+a.Name+" printed", "absent"
	if !want {
		expected, actual = "type $"+a.Name+" absent", "printed"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   actual,
		Trials:   result.TrialLines(),
	}
}

func assertFields(result *Result, a Assertion) error {
	p := result.Program
	h, found := printedType(p, a.Name)
	if !found || !p.Type(h).IsStruct() {
		return &AssertionError{
			Type:     AssertFields,
			Expected: fmt.Sprintf("struct $%s with fields %v", a.Name, a.Fields),
			Actual:   "no such struct",
			Trials:   result.TrialLines(),
		}
	}

	// Unnamed fields are listed by index.
	got := []string{}
	for i := range p.Type(h).Fields {
		name := p.FieldName(h, i)
		if name == "" {
			name = strconv.Itoa(i)
		}
		got = append(got, name)
	}
	want := a.Fields
	if want == nil {
		want = []string{}
	}
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFields,
		Expected: fmt.Sprintf("fields %v", want),
		Actual:   fmt.Sprintf("fields %v", got),
		Trials:   result.TrialLines(),
	}
}

// assertTrialOrder checks that the trials appear in the specified order.
// They don't need to be consecutive.
func assertTrialOrder(result *Result, a Assertion) error {
	lines := result.TrialLines()
	pos := 0
	for _, want := range a.Trials {
		i := slices.Index(lines[pos:], want)
		if i < 0 {
			return &AssertionError{
				Type:     AssertTrialOrder,
				Expected: fmt.Sprintf("trials in order: %v", a.Trials),
				Actual:   fmt.Sprintf("%q not found after position %d", want, pos),
				Trials:   lines,
			}
		}
		pos += i + 1
	}
	return nil
}

func assertTrialCount(result *Result, a Assertion) error {
	count := 0
	for _, t := range result.Trials {
		if a.Verdict == "" || t.Verdict == passes.Verdict(a.Verdict) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	what := "trials"
	if a.Verdict != "" {
		what = a.Verdict + " trials"
	}
	return &AssertionError{
		Type:     AssertTrialCount,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d %s", count, what),
		Trials:   result.TrialLines(),
	}
}

func assertStats(result *Result, a Assertion) error {
	actual := map[string]int{
		"iterations": result.Stats.Iterations,
		"trials":     result.Stats.Trials,
		"commits":    result.Stats.Commits,
		"rejections": result.Stats.Rejections,
	}
	var mismatches []string
	for _, name := range statNames {
		want, ok := a.Stats[name]
		if !ok {
			continue
		}
		if actual[name] != want {
			mismatches = append(mismatches, fmt.Sprintf("%s=%d (want %d)", name, actual[name], want))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertStats,
		Expected: fmt.Sprintf("%v", a.Stats),
		Actual:   strings.Join(mismatches, ", "),
		Trials:   result.TrialLines(),
	}
}
