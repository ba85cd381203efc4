package passes

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/validator"
)

// Pass transforms a program in place.
type Pass interface {
	Name() string
	Run(p *ir.Program)
}

// Option configures a pass.
type Option func(*settings)

type settings struct {
	oracle   Oracle
	recorder TrialRecorder
	logger   *slog.Logger
	abort    func(error)
}

func newSettings(opts []Option) settings {
	s := settings{
		oracle: validator.Oracle{},
		logger: slog.Default(),
		abort:  DefaultAbort,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithOracle replaces the validator as the judge of candidates.
func WithOracle(o Oracle) Option {
	return func(s *settings) { s.oracle = o }
}

// WithRecorder sends every trial to r.
func WithRecorder(r TrialRecorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAbort sets the handler for internal defects. The handler is not
// expected to return; if it does, the pass stops.
func WithAbort(fn func(error)) Option {
	return func(s *settings) { s.abort = fn }
}

// Factory builds a pass.
type Factory func(opts ...Option) Pass

var registry = map[string]Factory{
	"type-dce":  func(opts ...Option) Pass { return NewTypeDCE(opts...) },
	"roundtrip": func(opts ...Option) Pass { return NewRoundTrip(opts...) },
}

// Names returns the registered pass names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the pass registered under name.
func New(name string, opts ...Option) (Pass, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown pass %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return f(opts...), nil
}

// Runner runs passes in order on one program.
type Runner struct {
	Passes []Pass
	Logger *slog.Logger
}

// NewRunner builds a runner for the named passes.
func NewRunner(names []string, opts ...Option) (*Runner, error) {
	r := &Runner{Logger: newSettings(opts).logger}
	for _, name := range names {
		p, err := New(name, opts...)
		if err != nil {
			return nil, err
		}
		r.Passes = append(r.Passes, p)
	}
	return r, nil
}

// Run runs every pass on p.
func (r *Runner) Run(p *ir.Program) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, pass := range r.Passes {
		start := time.Now()
		logger.Debug("pass starting", "pass", pass.Name())
		pass.Run(p)
		logger.Info("pass done", "pass", pass.Name(), "elapsed", time.Since(start))
	}
}
