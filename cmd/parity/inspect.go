package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/born-ml/parity/internal/artifact"
	"github.com/born-ml/parity/internal/cli"
	"github.com/born-ml/parity/internal/loader"
)

func (a *app) inspectCommand() *cli.Command {
	var (
		head    int
		byStage bool
		asJSON  bool
	)

	return &cli.Command{
		Name:    "inspect",
		Summary: "Print value statistics of stored arrays",
		Description: "Print shape, dtype, min/max, mean/std and the first values of every array\n" +
			"at PATH (a .npy, .npz, .pbnd or .safetensors file, or a directory).",
		Usage: "parity inspect PATH [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flags.IntVar(&head, "head", artifact.DefaultHead, "number of leading values to print")
			flags.BoolVar(&byStage, "by-stage", false, "order staged keys (NN_suffix) by stage number")
			flags.BoolVar(&asJSON, "json", false, "emit JSON")
			a.commonFlags(flags)
			return flags
		},
		Run: func(args []string) error {
			if err := cli.ExactArgs(args, 1, "PATH"); err != nil {
				return err
			}
			if head < 0 {
				return cli.Usagef("--head must be >= 0")
			}
			_, logger, err := a.setup()
			if err != nil {
				return err
			}

			set, err := readAny(context.Background(), args[0], logger)
			if err != nil {
				return err
			}
			keys := set.Keys()
			if byStage {
				artifact.SortByStage(keys)
			} else {
				sort.Strings(keys)
			}

			summaries := make([]artifact.Summary, 0, len(keys))
			for _, key := range keys {
				arr, _ := set.Get(key)
				summaries = append(summaries, artifact.Stats(key, arr, head))
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}
			fmt.Fprintf(a.stdout, "=== %s Analysis ===\n", strings.ToUpper(kindName(args[0])))
			return artifact.WriteStats(a.stdout, summaries)
		},
	}
}

func kindName(path string) string {
	if f := loader.FormatFromPath(path); f == loader.FormatSafeTensors {
		return f.String()
	}
	kind, err := artifact.DetectKind(path)
	if err != nil {
		return "unknown"
	}
	return kind.String()
}
