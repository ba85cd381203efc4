package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/passes"
)

// Scenario defines one pruning scenario: an input program, the passes to
// run over it and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Features lists the enabled features. Defaults to ["all"].
	Features []string `yaml:"features,omitempty"`

	// Passes lists the passes to run, in order. Defaults to ["type-dce"].
	Passes []string `yaml:"passes,omitempty"`

	// Input is the program text.
	Input string `yaml:"input"`

	// Verdicts, if present, replace the validator with an oracle that
	// answers with these verdicts in order and rejects once they run out.
	Verdicts []bool `yaml:"verdicts,omitempty"`

	// Assertions validate the output program and the trial log.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the output program or the trial log.
type Assertion struct {
	// Type specifies the assertion type:
	// - "valid": the output program passes the validator
	// - "type_present": a type named Type is printed
	// - "type_absent": no type named Type is printed
	// - "fields": the struct Type has exactly Fields, in order
	// - "trial_order": Trials appear in the trial log in this order
	// - "trial_count": the trial log has Count entries (with Verdict, if set)
	// - "stats": the counters named in Stats have these values
	Type string `yaml:"type"`

	// Name is the heap type name (used by type_present, type_absent, fields).
	Name string `yaml:"name,omitempty"`

	// Fields are the expected field names (used by fields).
	Fields []string `yaml:"fields,omitempty"`

	// Trials are one-line trial descriptions such as "#2 $A[1] accepted"
	// (used by trial_order).
	Trials []string `yaml:"trials,omitempty"`

	// Count is the expected number of trials (used by trial_count).
	Count int `yaml:"count,omitempty"`

	// Verdict restricts trial_count to one verdict.
	Verdict string `yaml:"verdict,omitempty"`

	// Stats maps counter names (iterations, trials, commits, rejections)
	// to expected values (used by stats). Subset match.
	Stats map[string]int `yaml:"stats,omitempty"`
}

// Assertion type constants.
const (
	AssertValid       = "valid"
	AssertTypePresent = "type_present"
	AssertTypeAbsent  = "type_absent"
	AssertFields      = "fields"
	AssertTrialOrder  = "trial_order"
	AssertTrialCount  = "trial_count"
	AssertStats       = "stats"
)

var statNames = []string{"iterations", "trials", "commits", "rejections"}

// FeatureNames returns the configured features or the default.
func (s *Scenario) FeatureNames() []string {
	if len(s.Features) == 0 {
		return []string{"all"}
	}
	return s.Features
}

// PassNames returns the configured passes or the default.
func (s *Scenario) PassNames() []string {
	if len(s.Passes) == 0 {
		return []string{"type-dce"}
	}
	return s.Passes
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and names
// refer to known features and passes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Input == "" {
		return fmt.Errorf("input is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := ir.ParseFeatures(s.FeatureNames()); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	known := passes.Names()
	for i, name := range s.PassNames() {
		if !slices.Contains(known, name) {
			return fmt.Errorf("passes[%d]: unknown pass %q", i, name)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertValid:
	case AssertTypePresent, AssertTypeAbsent:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for %s", index, a.Type)
		}
	case AssertFields:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for fields", index)
		}
	case AssertTrialOrder:
		if len(a.Trials) == 0 {
			return fmt.Errorf("assertions[%d]: trials list is required for trial_order", index)
		}
	case AssertTrialCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trial_count", index)
		}
		if a.Verdict != "" && a.Verdict != string(passes.VerdictAccepted) && a.Verdict != string(passes.VerdictRejected) {
			return fmt.Errorf("assertions[%d]: verdict must be accepted or rejected, got %q", index, a.Verdict)
		}
	case AssertStats:
		if len(a.Stats) == 0 {
			return fmt.Errorf("assertions[%d]: stats map is required for stats", index)
		}
		for name := range a.Stats {
			if !slices.Contains(statNames, name) {
				return fmt.Errorf("assertions[%d]: unknown counter %q", index, name)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
