// Package main provides the parity command: export checkpoints, pack
// artifacts and gate numeric parity between two implementations.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/born-ml/parity/internal/cli"
)

const version = "v0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit status:
// 0 success, 1 failed comparison, 2 usage or I/O error.
func run(args []string, stdout, stderr io.Writer) int {
	err := newApp(stdout, stderr).root().Execute(args)
	code, printErr := cli.ExitStatus(err)
	if printErr {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return code
}
