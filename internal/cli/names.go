package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/passes"
	"github.com/roach88/typedce/internal/wat"
)

// NamesResult is the JSON payload of the names command.
type NamesResult struct {
	Types  int    `json:"types"`
	Output string `json:"output"`
}

// NewNamesCommand creates the names command.
func NewNamesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "names <in.wat>",
		Short: "Print a program with every type and struct field named",
		Long: `Give every reachable type and struct field a name and print the result.

Synthesized names use the prefixes "type" and "field", with _0, _1, ...
appended on collision. Existing names are kept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			p, err := loadOrFail(f, args[0], cmd.InOrStdin(), rootOpts.featureSet())
			if err != nil {
				return err
			}
			types, _ := ir.CollectHeapTypes(p)
			passes.EnsureNames(p, types)
			out := wat.Print(p)
			return f.Success(NamesResult{Types: len(types), Output: out}, out)
		},
	}
}
