package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a scenario result in golden file form: a comment header
// with the passes, the counters and the trial log, then the output program.
// The header is made of ;; comments, so the whole snapshot still parses as
// a program.
func Snapshot(scenario *Scenario, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, ";; scenario: %s\n", scenario.Name)
	fmt.Fprintf(&b, ";; passes: %s\n", strings.Join(scenario.PassNames(), " "))
	s := result.Stats
	fmt.Fprintf(&b, ";; stats: iterations=%d trials=%d commits=%d rejections=%d\n",
		s.Iterations, s.Trials, s.Commits, s.Rejections)
	for _, line := range result.TrialLines() {
		fmt.Fprintf(&b, ";; %s\n", line)
	}
	b.WriteString(result.Output)
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(scenario, result))
}
