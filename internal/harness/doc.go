// Package harness runs type-pruning scenarios and checks their outcome.
//
// A scenario is a program, a list of passes and a list of assertions on
// what the passes leave behind. Every run is also checked against the
// invariants any run must satisfy, independent of the scenario.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: unread_field
//	description: "A field nothing reads is removed"
//	features: [all]          # optional, default [all]
//	passes: [type-dce]       # optional, default [type-dce]
//	verdicts: [false, true]  # optional, scripted oracle answers
//	input: |
//	  (module
//	   (type $A (struct (field $x i32) (field $y i64)))
//	   ...
//	  )
//	assertions:
//	  - type: fields
//	    name: A
//	    fields: [x]
//	  - type: trial_order
//	    trials: ["#1 $A[0] rejected", "#2 $A[1] accepted"]
//
// Decoding is strict: unknown keys are errors.
//
// # Assertion Types
//
//   - valid: the output passes the validator
//   - type_present / type_absent: a named type is or is not printed
//   - fields: a struct has exactly the listed fields, in order
//   - trial_order: trials appear in the trial log in the listed order
//   - trial_count: number of trials, optionally with a given verdict
//   - stats: subset match on iterations, trials, commits, rejections
//
// # Invariants
//
// CheckInvariants runs after the assertions:
//
//   - counters agree with the trial log, and every sweep ends with one
//     empty iteration
//   - within a sweep the cursor never moves back, and a rejected position
//     is never retried
//   - with the real validator, a valid input yields a valid output
//   - the printed struct fields never grow in number
//
// # Golden Files
//
// Snapshot renders the counters, the trial log and the output program. Tests
// compare it with goldie; RunSuite compares it with golden/<file>.golden
// next to each scenario file.
package harness
