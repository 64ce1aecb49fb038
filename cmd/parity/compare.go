package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/born-ml/parity/internal/artifact"
	"github.com/born-ml/parity/internal/cli"
	"github.com/born-ml/parity/internal/compare"
)

func (a *app) compareCommand() *cli.Command {
	var (
		flags     *pflag.FlagSet
		rtol      float64
		atol      float64
		earlyStop bool
		workers   int
		format    string
	)

	return &cli.Command{
		Name:    "compare",
		Summary: "Compare two artifact sets elementwise",
		Description: "Compare the arrays stored at LEFT and RIGHT key by key.\n\n" +
			"Each location is a directory of .npy files, an .npz archive or a .pbnd bundle.\n" +
			"A shared key passes when every element satisfies |l - r| <= atol + rtol*|r|.\n" +
			"Keys present on one side only are reported but do not fail the run.\n\n" +
			"Exit status: 0 all compared keys passed, 1 at least one failed, 2 error.",
		Usage: "parity compare LEFT RIGHT [flags]",
		Examples: []cli.Example{
			{
				Description: "Compare activation dumps of the reference and the engine under test",
				Command:     "parity compare artifacts/py_out artifacts/go_out",
			},
			{
				Description: "Stop at the first failing layer and emit JSON",
				Command:     "parity compare --early-stop --format json ref.npz out.npz",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags = pflag.NewFlagSet("compare", pflag.ContinueOnError)
			flags.Float64Var(&rtol, "rtol", compare.DefaultRTol, "relative tolerance")
			flags.Float64Var(&atol, "atol", compare.DefaultATol, "absolute tolerance")
			flags.BoolVar(&earlyStop, "early-stop", false, "stop after the first failing key")
			flags.IntVar(&workers, "workers", 0, "parallel comparisons (0 = all CPUs)")
			flags.StringVar(&format, "format", "text", "report format: "+strings.Join(compare.Formats, ", "))
			a.commonFlags(flags)
			return flags
		},
		Run: func(args []string) error {
			if err := cli.ExactArgs(args, 2, "LEFT", "RIGHT"); err != nil {
				return err
			}
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}

			opts := compare.Options{
				RTol:      cfg.Compare.RTol,
				ATol:      cfg.Compare.ATol,
				EarlyStop: cfg.Compare.EarlyStop,
				Workers:   cfg.Compare.Workers,
				LeftName:  args[0],
				RightName: args[1],
			}
			outFormat := cfg.Compare.Format
			if flags.Changed("rtol") {
				opts.RTol = rtol
			}
			if flags.Changed("atol") {
				opts.ATol = atol
			}
			if flags.Changed("early-stop") {
				opts.EarlyStop = earlyStop
			}
			if flags.Changed("workers") {
				opts.Workers = workers
			}
			if flags.Changed("format") {
				outFormat = format
			}
			if err := opts.Validate(); err != nil {
				return cli.Usagef("%v", err)
			}
			if !slices.Contains(compare.Formats, outFormat) {
				return cli.Usagef("unknown report format %q (want one of %s)",
					outFormat, strings.Join(compare.Formats, ", "))
			}

			ld := &artifact.Loader{Logger: logger}
			left, right, err := ld.LoadPair(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, side := range []struct {
				name  string
				count int
			}{{args[0], left.Len()}, {args[1], right.Len()}} {
				if side.count == 0 {
					logger.Warn("no arrays found", "location", side.name)
				}
			}

			report := compare.Compare(left, right, opts)
			if report.HasMissing() {
				logger.Warn("artifact sets differ",
					"missing_in_right", len(report.LeftOnly),
					"missing_in_left", len(report.RightOnly),
				)
			}
			if err := report.Write(a.stdout, outFormat); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			logger.Debug("comparison finished",
				"compared", len(report.Results),
				"failed", report.Failed(),
				"stopped", report.Stopped,
			)
			return cli.Exit(report.ExitCode())
		},
	}
}
