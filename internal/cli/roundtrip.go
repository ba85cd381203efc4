package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/typedce/internal/passes"
	"github.com/roach88/typedce/internal/wasmbin"
	"github.com/roach88/typedce/internal/wat"
)

// RoundTripResult is the JSON payload of the roundtrip command.
type RoundTripResult struct {
	Bytes  int    `json:"bytes"`
	Output string `json:"output"`
}

// NewRoundTripCommand creates the roundtrip command.
func NewRoundTripCommand(rootOpts *RootOptions) *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "roundtrip <in.wat>",
		Short: "Re-encode a program through its binary form",
		Long: `Encode a program to its binary form, decode it and print the result.

The round trip drops types nothing refers to and renumbers the rest.
With --dump, the encoded bytes are printed as a hex dump instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			p, err := loadOrFail(f, args[0], cmd.InOrStdin(), rootOpts.featureSet())
			if err != nil {
				return err
			}

			data := wasmbin.Encode(p)
			if dump {
				return f.Success(RoundTripResult{Bytes: len(data), Output: wasmbin.Dump(data)}, wasmbin.Dump(data))
			}

			var defect error
			passes.NewRoundTrip(
				passes.WithLogger(newLogger(cmd.ErrOrStderr(), slog.LevelInfo, rootOpts.Verbose)),
				passes.WithAbort(func(err error) { defect = err }),
			).Run(p)
			if defect != nil {
				return reportDefect(f, defect)
			}
			out := wat.Print(p)
			return f.Success(RoundTripResult{Bytes: len(data), Output: out}, out)
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "print the encoded bytes as a hex dump")
	return cmd
}

// reportDefect writes the defect and the offending document to the error
// writer and returns an ExitDefect error.
func reportDefect(f *OutputFormatter, err error) error {
	w := f.GetErrWriter()
	fmt.Fprintf(w, "fatal: %v\n", err)
	var de *passes.DefectError
	if errors.As(err, &de) {
		fmt.Fprintf(w, "--- %s ---\n%s\n", de.Stage, de.Document)
	}
	if f.Format == "json" {
		if encErr := f.Error(ErrCodeDefect, err.Error(), nil); encErr != nil {
			return encErr
		}
	}
	return WrapExitError(ExitDefect, "internal defect", err)
}
