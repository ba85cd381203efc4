package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const passingYAML = `name: passing
input: |
  (module
   (type $A (struct (field $x i32) (field $y i64)))
   (func $main (result i32)
    (struct.get $A $x (struct.new_default $A))
   )
  )
assertions:
  - type: fields
    name: A
    fields: [x]
`

const failingYAML = `name: failing
input: "(module (type $A (struct (field $x i32))) (global $g (ref null $A) (ref.null $A)))"
assertions:
  - type: fields
    name: A
    fields: [x]
`

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), passingYAML)
	writeFile(t, filepath.Join(dir, "nested", "b.yml"), passingYAML)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "nested", "b.yml")}, files)

	files, err = FindScenarios(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "nested", "b.yml")}, files)

	_, err = FindScenarios(dir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")

	_, err = FindScenarios(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "x.golden"), GoldenPath(filepath.Join("s", "x.yaml")))
}

func TestRunSuite_PassFailAndLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1_passing.yaml"), passingYAML)
	writeFile(t, filepath.Join(dir, "2_failing.yaml"), failingYAML)
	writeFile(t, filepath.Join(dir, "3_broken.yaml"), "name: broken\n")

	suite, err := RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 2, suite.Failed)
	require.Len(t, suite.Scenarios, 3)

	assert.Equal(t, "passing", suite.Scenarios[0].Name)
	assert.True(t, suite.Scenarios[0].Pass)
	assert.Empty(t, suite.Scenarios[0].Golden)

	// $x is never read, so it is pruned.
	assert.Equal(t, "failing", suite.Scenarios[1].Name)
	assert.False(t, suite.Scenarios[1].Pass)
	require.NotEmpty(t, suite.Scenarios[1].Errors)
	assert.Contains(t, suite.Scenarios[1].Errors[0], "Actual: fields []")

	assert.Equal(t, "3_broken.yaml", suite.Scenarios[2].Name)
	assert.Contains(t, suite.Scenarios[2].Errors[0], "failed to load scenario")
}

func TestRunSuite_ExecutionError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad_input.yaml"), `name: bad_input
input: "(module (func $f (call $nowhere)))"
assertions:
  - type: valid
`)

	suite, err := RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	require.Len(t, suite.Scenarios, 1)
	assert.False(t, suite.Scenarios[0].Pass)
	assert.Contains(t, suite.Scenarios[0].Errors[0], "execution failed")
}

func TestRunSuite_GoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "passing.yaml")
	writeFile(t, file, passingYAML)

	suite, err := RunSuite(dir, SuiteOptions{Update: true})
	require.NoError(t, err)
	assert.Equal(t, "updated", suite.Scenarios[0].Golden)
	assert.FileExists(t, GoldenPath(file))

	suite, err = RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "match", suite.Scenarios[0].Golden)
	assert.True(t, suite.Scenarios[0].Pass)

	writeFile(t, GoldenPath(file), ";; stale\n(module)\n")
	suite, err = RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "mismatch", suite.Scenarios[0].Golden)
	assert.False(t, suite.Scenarios[0].Pass)
	assert.Equal(t, 1, suite.Failed)
}

func TestRunSuite_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "passing.yaml"), passingYAML)
	writeFile(t, filepath.Join(dir, "failing.yaml"), failingYAML)

	suite, err := RunSuite(dir, SuiteOptions{Filter: "pass*"})
	require.NoError(t, err)
	assert.Equal(t, 1, suite.Total)
	assert.Equal(t, 0, suite.Failed)
}
