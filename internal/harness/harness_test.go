package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedce/internal/passes"
)

const unreadFieldInput = `(module
 (type $A (struct (field $x i32) (field $y i64)))
 (func $main (result i32)
  (struct.get $A $x (struct.new_default $A))
 )
)
`

func scenarioFor(input string, assertions ...Assertion) *Scenario {
	return &Scenario{Name: "inline", Input: input, Assertions: assertions}
}

func TestRun_PrunesAndRecordsTrials(t *testing.T) {
	result, err := Run(scenarioFor(unreadFieldInput, Assertion{Type: AssertValid}))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.True(t, result.InputValid)
	assert.Equal(t, 1, result.Sweeps)
	assert.Equal(t, passes.Stats{Iterations: 3, Trials: 2, Commits: 1, Rejections: 1}, result.Stats)
	assert.Equal(t, []string{"#1 $A[0] rejected", "#2 $A[1] accepted"}, result.TrialLines())
	assert.Equal(t, "x", result.Trials[0].FieldName)
	assert.Len(t, result.Trials[1].Candidate, 64)
	assert.Equal(t, `(module
 (type $A (struct (field $x i32)))
 (func $main (result i32)
  (struct.get $A $x (struct.new_default $A))
 )
)
`, result.Output)
	require.NotNil(t, result.Program)
}

func TestRun_FailedAssertionFailsResult(t *testing.T) {
	result, err := Run(scenarioFor(unreadFieldInput,
		Assertion{Type: AssertFields, Name: "A", Fields: []string{"x", "y"}},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: fields")
	assert.Contains(t, result.Errors[0], "Expected: fields [x y]")
	assert.Contains(t, result.Errors[0], "Actual: fields [x]")
}

func TestRun_ScriptedVerdicts(t *testing.T) {
	s := scenarioFor(unreadFieldInput, Assertion{Type: AssertTypePresent, Name: "A"})
	s.Verdicts = []bool{true, true}

	result, err := Run(s)
	require.NoError(t, err)

	// Accepting $A[0] commits an invalid program; the scripted oracle is
	// trusted, so this is not an invariant failure.
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"#1 $A[0] accepted", "#2 $A[0] accepted"}, result.TrialLines())
	assert.Contains(t, result.Output, "(type $A (struct))")
}

func TestRun_EmptyVerdictsRejectEverything(t *testing.T) {
	s := scenarioFor(unreadFieldInput, Assertion{Type: AssertTrialCount, Count: 2, Verdict: "rejected"})
	s.Verdicts = []bool{}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 0, result.Stats.Commits)
}

func TestRun_InvalidInputStillRuns(t *testing.T) {
	// $nope does not resolve, so the input itself is invalid and no
	// candidate can fix it.
	result, err := Run(scenarioFor(`(module
 (type $A (struct (field $x i32)))
 (func $main (result i32)
  (struct.get $A $nope (struct.new_default $A))
 )
)
`, Assertion{Type: AssertTrialCount, Count: 1}))
	require.NoError(t, err)

	assert.False(t, result.InputValid)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(scenarioFor("(module (func $f (call $nowhere)))", Assertion{Type: AssertValid}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse input")

	s := scenarioFor("(module)", Assertion{Type: AssertValid})
	s.Passes = []string{"inline"}
	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown pass "inline"`)

	s = scenarioFor("(module)", Assertion{Type: AssertValid})
	s.Features = []string{"simd"}
	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "features")
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(scenarioFor(unreadFieldInput, Assertion{Type: AssertValid}))
	require.NoError(t, err)
	second, err := Run(scenarioFor(unreadFieldInput, Assertion{Type: AssertValid}))
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, first.Trials, second.Trials)
}

func TestRun_SweepsAddUp(t *testing.T) {
	s := scenarioFor(unreadFieldInput, Assertion{Type: AssertValid})
	s.Passes = []string{"type-dce", "type-dce"}

	result, err := Run(s)
	require.NoError(t, err)

	// The second sweep only retries $A[0].
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Sweeps)
	assert.Equal(t, passes.Stats{Iterations: 5, Trials: 3, Commits: 1, Rejections: 2}, result.Stats)
	assert.Equal(t, []string{"#1 $A[0] rejected", "#2 $A[1] accepted", "#1 $A[0] rejected"}, result.TrialLines())
}
