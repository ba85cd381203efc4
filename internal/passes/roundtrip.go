package passes

import (
	"log/slog"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/wasmbin"
)

// RoundTrip re-encodes a program through its binary form, which normalizes
// it: types nothing refers to are dropped and handles are renumbered.
type RoundTrip struct {
	logger *slog.Logger
	abort  func(error)
}

// NewRoundTrip returns the round-trip pass.
func NewRoundTrip(opts ...Option) *RoundTrip {
	s := newSettings(opts)
	return &RoundTrip{logger: s.logger, abort: s.abort}
}

// Name implements Pass.
func (r *RoundTrip) Name() string { return "roundtrip" }

// Run replaces p with the decoding of its encoding. Features are not part
// of the binary form and are carried over.
func (r *RoundTrip) Run(p *ir.Program) {
	features := p.Features
	data := wasmbin.Encode(p)
	decoded, err := wasmbin.Decode(data)
	if err != nil {
		r.abort(&DefectError{Stage: "binary", Document: wasmbin.Dump(data), Err: err})
		return
	}
	ir.ClearProgram(p)
	ir.CopyProgram(decoded, p)
	p.Features = features
	r.logger.Debug("round trip done", "bytes", len(data), "types", len(p.Types))
}
