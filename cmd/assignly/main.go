// Command assignly serves the assignment negotiation and payment API.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/assignly/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
