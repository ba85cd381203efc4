package passes

import (
	"testing"

	"github.com/roach88/typedce/internal/ir"
)

// trialLog collects trials in memory.
type trialLog struct {
	trials []Trial
}

func (l *trialLog) RecordTrial(t Trial) error {
	l.trials = append(l.trials, t)
	return nil
}

// trialLines returns the recorded trials in their one-line form.
func trialLines(l *trialLog) []string {
	lines := make([]string, len(l.trials))
	for i, t := range l.trials {
		lines[i] = t.String()
	}
	return lines
}

// panicAbort turns an internal defect into a test failure instead of an
// exit.
func panicAbort(t *testing.T) func(error) {
	return func(err error) {
		t.Helper()
		t.Fatalf("unexpected internal defect: %v", err)
	}
}

// fieldNames returns the field names of the struct named typeName.
func fieldNames(p *ir.Program, typeName string) []string {
	h, ok := p.LookupType(typeName)
	if !ok {
		return nil
	}
	def := p.Type(h)
	names := make([]string, len(def.Fields))
	for i := range def.Fields {
		names[i] = p.FieldName(h, i)
	}
	return names
}
