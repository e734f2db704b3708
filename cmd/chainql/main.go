// Command chainql compiles CUE query definitions into query models and
// runs them against SQLite.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/chainql/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own ExitErrors; anything else is a usage error.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
