package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/born-ml/parity/internal/artifact"
	"github.com/born-ml/parity/internal/bundle"
	"github.com/born-ml/parity/internal/cli"
	"github.com/born-ml/parity/internal/loader"
	"github.com/born-ml/parity/internal/mapper"
	"github.com/born-ml/parity/internal/npz"
)

func (a *app) exportCommand() *cli.Command {
	var (
		flags       *pflag.FlagSet
		policyName  string
		policyFile  string
		bounds      string
		compress    bool
		compression string
	)

	return &cli.Command{
		Name:    "export",
		Summary: "Map a checkpoint to flat keys and write it",
		Description: "Read CHECKPOINT (.safetensors, .npz or .pbnd), rename its parameters with a\n" +
			"naming policy and write the result to OUT. The output form follows the\n" +
			"extension of OUT: .npz, .pbnd, or a directory of .npy files.\n\n" +
			"Without --policy or --policy-file the built-in policy matching the\n" +
			"checkpoint is used. Parameters the policy does not consume are logged.",
		Usage: "parity export CHECKPOINT OUT [flags]",
		Examples: []cli.Example{
			{
				Description: "Export torchvision ResNet-50 weights",
				Command:     "parity export resnet50.safetensors resnet50.npz --policy resnet50",
			},
			{
				Description: "ResNet-34 block counts with a custom policy file",
				Command:     "parity export model.npz out.pbnd --policy-file resnet.yaml --bounds 1:3,2:4,3:6,4:3",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags = pflag.NewFlagSet("export", pflag.ContinueOnError)
			flags.StringVar(&policyName, "policy", "", "built-in policy name (see 'parity policies')")
			flags.StringVar(&policyFile, "policy-file", "", "YAML or JSONC policy file")
			flags.StringVar(&bounds, "bounds", "", "block counts per group, e.g. 1:3,2:4,3:6,4:3")
			flags.BoolVar(&compress, "compress", false, "deflate .npz entries")
			flags.StringVar(&compression, "compression", "none", "bundle compression: none, lz4, zstd, bg4_lz4, auto")
			a.commonFlags(flags)
			return flags
		},
		Run: func(args []string) error {
			if err := cli.ExactArgs(args, 2, "CHECKPOINT", "OUT"); err != nil {
				return err
			}
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			exp := cfg.Export
			if flags.Changed("policy") {
				exp.Policy, exp.PolicyFile = policyName, ""
			}
			if flags.Changed("policy-file") {
				exp.PolicyFile = policyFile
			}
			if flags.Changed("bounds") {
				exp.Bounds = bounds
			}
			if flags.Changed("compress") {
				exp.Compress = compress
			}
			if flags.Changed("compression") {
				exp.Compression = compression
			}

			table, err := mapper.ParseBounds(exp.Bounds)
			if err != nil {
				return cli.Usagef("--bounds: %v", err)
			}
			comp, err := bundle.ParseCompression(exp.Compression)
			if err != nil {
				return cli.Usagef("--compression: %v", err)
			}

			ckpt, err := loader.OpenCheckpoint(args[0])
			if err != nil {
				return err
			}
			defer ckpt.Close()

			policy, err := resolvePolicy(exp.PolicyFile, exp.Policy, ckpt.Architecture())
			if err != nil {
				return err
			}
			logger = logger.With("policy", policy.Name, "checkpoint", args[0])

			set, err := loader.ReadAll(ckpt)
			if err != nil {
				return err
			}
			tree, err := mapper.NewTree(set)
			if err != nil {
				return err
			}
			mapped, err := mapper.Map(tree, policy, table)
			if err != nil {
				return err
			}
			unmapped, err := mapper.Unmapped(tree, policy, table)
			if err != nil {
				return err
			}
			for _, path := range unmapped {
				logger.Warn("parameter not exported", "path", path)
			}

			opts := artifact.SaveOptions{
				NPZ: npz.Options{Compress: exp.Compress},
				Bundle: bundle.WriterOptions{
					Compression: comp,
					CreatedBy:   "parity " + version,
					Metadata: map[string]string{
						"policy":         policy.Name,
						"policy_version": fmt.Sprint(policy.Version),
					},
				},
			}
			if err := artifact.Save(args[1], mapped, opts); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Exported %d arrays to %s (policy %s v%d, %d unmapped)\n",
				mapped.Len(), args[1], policy.Name, policy.Version, len(unmapped))
			return nil
		},
	}
}

// resolvePolicy picks the policy file, then the named preset, then the
// detected architecture.
func resolvePolicy(file, name, detected string) (*mapper.Policy, error) {
	switch {
	case file != "":
		return mapper.LoadPolicyFile(file)
	case name != "":
		return mapper.Preset(name)
	case detected != "":
		return mapper.Preset(detected)
	default:
		return nil, cli.Usagef("no built-in policy matches the checkpoint; use --policy or --policy-file")
	}
}
