package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typedce/internal/journal"
)

// JournalResult is the JSON payload of the journal command.
type JournalResult struct {
	Runs   []journal.Summary `json:"runs"`
	Trials []string          `json:"trials,omitempty"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "journal <trials.db>",
		Short: "List the runs recorded in a trial journal",
		Long: `List every run recorded by prune --journal, oldest first.

With --run, print the trials of that run in the order they were made.

Exit codes:
  0 - Success
  2 - Command error (journal not found, unknown run, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(rootOpts, args[0], runID, cmd)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "print the trials of this run")
	return cmd
}

func runJournal(opts *RootOptions, path, runID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	// Open creates missing databases.
	if _, err := os.Stat(path); err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("journal not found: %s", path), nil)
	}
	j, err := journal.Open(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, err.Error(), nil)
	}
	defer j.Close()

	ctx := cmd.Context()
	ids := []string{runID}
	if runID == "" {
		ids, err = j.Runs(ctx)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeJournal, err.Error(), nil)
		}
	}

	result := JournalResult{Runs: make([]journal.Summary, 0, len(ids))}
	for _, id := range ids {
		s, err := j.Summary(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("unknown run %s", id), nil)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeJournal, err.Error(), nil)
		}
		result.Runs = append(result.Runs, s)
	}

	var b strings.Builder
	if runID == "" {
		if len(result.Runs) == 0 {
			b.WriteString("No runs recorded.\n")
		}
		for _, s := range result.Runs {
			fmt.Fprintf(&b, "%s  %s  trials=%d accepted=%d rejected=%d", s.RunID, s.Input, s.Trials, s.Accepted, s.Rejected)
			if !s.Finished {
				b.WriteString("  (unfinished)")
			}
			b.WriteString("\n")
		}
		return f.Success(result, b.String())
	}

	trials, err := j.Trials(ctx, runID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, err.Error(), nil)
	}
	result.Trials = make([]string, len(trials))
	for i, t := range trials {
		result.Trials[i] = t.String()
		fmt.Fprintf(&b, "%s\n", result.Trials[i])
	}
	return f.Success(result, b.String())
}
