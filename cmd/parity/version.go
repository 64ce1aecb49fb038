package main

import (
	"fmt"

	"github.com/born-ml/parity/internal/cli"
)

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Show version",
		Run: func(args []string) error {
			fmt.Fprintf(a.stdout, "parity %s\n", version)
			return nil
		},
	}
}
