package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/parity/internal/cli"
	"github.com/born-ml/parity/internal/mapper"
)

func (a *app) policiesCommand() *cli.Command {
	var show string

	return &cli.Command{
		Name:    "policies",
		Summary: "List the built-in naming policies",
		Usage:   "parity policies [--show NAME]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("policies", pflag.ContinueOnError)
			flags.StringVar(&show, "show", "", "print the named policy as YAML")
			return flags
		},
		Run: func(args []string) error {
			if err := cli.ExactArgs(args, 0); err != nil {
				return err
			}
			if show != "" {
				policy, err := mapper.Preset(show)
				if err != nil {
					return cli.Usagef("%v", err)
				}
				enc := yaml.NewEncoder(a.stdout)
				enc.SetIndent(2)
				if err := enc.Encode(policy); err != nil {
					return err
				}
				return enc.Close()
			}

			tw := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(tw, "NAME\tVERSION\tSTAGES\tBOUNDS\n")
			for _, name := range mapper.Presets() {
				policy, err := mapper.Preset(name)
				if err != nil {
					return err
				}
				bounds := policy.Bounds.String()
				if bounds == "" {
					bounds = "-"
				}
				fmt.Fprintf(tw, "%s\tv%d\t%d\t%s\n", policy.Name, policy.Version, len(policy.Stages), bounds)
			}
			return tw.Flush()
		},
	}
}
