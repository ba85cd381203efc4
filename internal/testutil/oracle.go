package testutil

import (
	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/wat"
)

// RecordingOracle delegates to Inner and remembers every candidate it saw,
// printed, along with the verdict.
type RecordingOracle struct {
	Inner    func(p *ir.Program) bool
	Seen     []string
	Verdicts []bool
}

// Valid implements the oracle interface.
func (o *RecordingOracle) Valid(p *ir.Program) bool {
	v := o.Inner(p)
	o.Seen = append(o.Seen, wat.Print(p))
	o.Verdicts = append(o.Verdicts, v)
	return v
}

// Calls returns how many candidates were judged.
func (o *RecordingOracle) Calls() int { return len(o.Verdicts) }

// SequenceOracle answers with verdicts in order and rejects once they run
// out.
type SequenceOracle struct {
	verdicts []bool
	next     int
}

// NewSequenceOracle returns an oracle that replays verdicts.
func NewSequenceOracle(verdicts ...bool) *SequenceOracle {
	return &SequenceOracle{verdicts: verdicts}
}

// Valid implements the oracle interface.
func (o *SequenceOracle) Valid(*ir.Program) bool {
	if o.next >= len(o.verdicts) {
		return false
	}
	v := o.verdicts[o.next]
	o.next++
	return v
}
