package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/born-ml/parity/internal/artifact"
	"github.com/born-ml/parity/internal/cli"
	"github.com/born-ml/parity/internal/config"
	"github.com/born-ml/parity/internal/loader"
	"github.com/born-ml/parity/internal/tensor"
)

// app carries the process streams and the options shared by every
// subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:       "parity",
		Summary:    "Tensor interchange and numeric parity checks",
		HelpOutput: a.stderr,
		Description: "parity exports reference checkpoints to NPY/NPZ, maps hierarchical parameter\n" +
			"names to flat keys, and compares the artifacts of two implementations.",
		Subcommands: []*cli.Command{
			a.compareCommand(),
			a.exportCommand(),
			a.inspectCommand(),
			a.packCommand(),
			a.policiesCommand(),
			a.versionCommand(),
		},
	}
}

// commonFlags registers --config and --log-level on fs.
func (a *app) commonFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.configPath, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	fs.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// setup loads the configuration and builds the logger. A --log-level flag
// overrides the configured level.
func (a *app) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, cli.Usagef("%v", err)
	}
	return cfg, cli.NewLogger(a.stderr, level), nil
}

// readAny loads a set from an artifact location or a checkpoint file.
func readAny(ctx context.Context, path string, logger *slog.Logger) (*tensor.Set, error) {
	if loader.FormatFromPath(path) == loader.FormatSafeTensors {
		set, err := loader.ReadCheckpoint(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		return set, nil
	}
	return (&artifact.Loader{Logger: logger}).Load(ctx, path)
}
