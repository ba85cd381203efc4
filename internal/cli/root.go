package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typedce/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Features string // comma-separated feature names, "" means the config's
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the typedce CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "typedce",
		Short: "typedce - struct field pruning for typed IR programs",
		Long: `Remove struct fields a program does not need.

Each field is removed speculatively and kept out only if the program
still validates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if _, err := opts.featureNames(); err != nil {
				return WrapExitError(ExitCommandError, "invalid --features", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Features, "features", "", "enabled features, comma-separated (default from config: all)")

	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewNamesCommand(opts))
	cmd.AddCommand(NewRoundTripCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}

// featureNames splits --features. It returns nil when the flag is unset.
func (o *RootOptions) featureNames() ([]string, error) {
	if o.Features == "" {
		return nil, nil
	}
	names := strings.Split(o.Features, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	if _, err := ir.ParseFeatures(names); err != nil {
		return nil, err
	}
	return names, nil
}

// featureSet returns --features, or all features when it is unset.
func (o *RootOptions) featureSet() ir.FeatureSet {
	names, err := o.featureNames()
	if err != nil || names == nil {
		return ir.FeaturesAll
	}
	set, _ := ir.ParseFeatures(names)
	return set
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
