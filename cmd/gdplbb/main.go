// Command gdplbb solves generalized disjunctive programs by best-first
// branch and bound.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gdplbb/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
