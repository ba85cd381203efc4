package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typedce/internal/validator"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                        `json:"valid"`
	Errors []validator.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <in.wat>",
		Short: "Type-check a program",
		Long: `Type-check a program and list every error found, with its code.

This is the same check the prune command uses to accept or reject a
candidate.

Exit codes:
  0 - Program is valid
  1 - Program has validation errors
  2 - Command error (file not found, syntax error, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	p, err := loadOrFail(f, path, cmd.InOrStdin(), opts.featureSet())
	if err != nil {
		return err
	}
	f.VerboseLog("Loaded %s: %d type(s), %d function(s)", path, len(p.Types), len(p.Functions))

	errs := validator.Validate(p)
	if len(errs) == 0 {
		return f.Success(ValidationResult{Valid: true}, "✓ Program is valid\n")
	}

	if f.Format == "json" {
		return f.Fail(ExitFailure, ErrCodeInvalid, fmt.Sprintf("%d validation error(s)", len(errs)), ValidationResult{Errors: errs})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✗ %d validation error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(&b, "  %s\n", e.Error())
	}
	fmt.Fprint(f.Writer, b.String())
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
}
