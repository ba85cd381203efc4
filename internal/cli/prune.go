package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/typedce/internal/config"
	"github.com/roach88/typedce/internal/journal"
	"github.com/roach88/typedce/internal/passes"
	"github.com/roach88/typedce/internal/wat"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	Output  string   // output file, "" for stdout
	Config  string   // CUE config file
	Journal string   // SQLite journal path, overrides the config
	Passes  []string // passes to run, overrides the config
}

// PruneResult is the JSON payload of the prune command.
type PruneResult struct {
	Output     string       `json:"output,omitempty"`
	OutputPath string       `json:"output_path,omitempty"`
	Passes     []string     `json:"passes"`
	Stats      passes.Stats `json:"stats"`
	RunID      string       `json:"run_id,omitempty"`
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune <in.wat>",
		Short: "Remove unneeded struct fields",
		Long: `Run the configured passes over a program and print the result.

The default pass, type-dce, removes struct fields one at a time and keeps
a removal only if the program still validates. With --journal every
trial is recorded in a SQLite database.

Exit codes:
  0 - Success
  2 - Command error (file not found, bad config, etc.)
  70 - Internal defect in a pass

Examples:
  typedce prune in.wat
  typedce prune in.wat -o out.wat --journal trials.db
  typedce prune in.wat --pass roundtrip --pass type-dce
  typedce prune in.wat --config typedce.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the pruned program to this file")
	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE configuration file")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record trials in this SQLite database")
	cmd.Flags().StringArrayVar(&opts.Passes, "pass", nil, "pass to run (repeatable, default from config: type-dce)")

	return cmd
}

func runPrune(opts *PruneOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	features := cfg.FeatureSet()
	if opts.Features != "" {
		features = opts.featureSet()
	}
	names := cfg.Passes
	if len(opts.Passes) > 0 {
		names = opts.Passes
	}
	journalPath := cfg.Journal
	if opts.Journal != "" {
		journalPath = opts.Journal
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.SlogLevel(), opts.Verbose)

	p, err := loadOrFail(f, path, cmd.InOrStdin(), features)
	if err != nil {
		return err
	}

	var defect error
	passOpts := []passes.Option{
		passes.WithLogger(logger),
		passes.WithAbort(func(err error) { defect = err }),
	}

	var run *journal.Run
	if journalPath != "" {
		j, err := journal.Open(journalPath)
		if err != nil {
			logger.Warn("journal disabled", "path", journalPath, "error", err)
		} else {
			defer j.Close()
			run, err = j.BeginRun(cmd.Context(), path, features)
			if err != nil {
				logger.Warn("journal disabled", "path", journalPath, "error", err)
				run = nil
			} else {
				passOpts = append(passOpts, passes.WithRecorder(run))
				f.VerboseLog("Journal run %s in %s", run.ID, journalPath)
			}
		}
	}

	runner, err := passes.NewRunner(names, passOpts...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	runner.Run(p)
	if defect != nil {
		return reportDefect(f, defect)
	}

	result := PruneResult{Passes: names}
	for _, pass := range runner.Passes {
		if dce, ok := pass.(*passes.TypeDCE); ok {
			s := dce.Stats()
			result.Stats.Iterations += s.Iterations
			result.Stats.Trials += s.Trials
			result.Stats.Commits += s.Commits
			result.Stats.Rejections += s.Rejections
		}
	}
	if run != nil {
		result.RunID = run.ID
		if err := run.Finish(result.Stats); err != nil {
			logger.Warn("journal run not finished", "run", run.ID, "error", err)
		}
	}

	out := wat.Print(p)
	if opts.Output == "" {
		result.Output = out
		return f.Success(result, out)
	}

	if err := os.WriteFile(opts.Output, []byte(out), 0644); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("failed to write %s: %v", opts.Output, err), nil)
	}
	result.OutputPath = opts.Output
	return f.Success(result, fmt.Sprintf("✓ Removed %d field(s) in %d trial(s), wrote %s\n",
		result.Stats.Commits, result.Stats.Trials, opts.Output))
}
