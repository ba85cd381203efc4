// Command typedce removes struct fields a program does not need.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/typedce/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
