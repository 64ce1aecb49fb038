package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/born-ml/parity/internal/artifact"
	"github.com/born-ml/parity/internal/bundle"
	"github.com/born-ml/parity/internal/cli"
	"github.com/born-ml/parity/internal/loader"
	"github.com/born-ml/parity/internal/npz"
)

func (a *app) packCommand() *cli.Command {
	var (
		compress    bool
		compression string
	)

	return &cli.Command{
		Name:    "pack",
		Summary: "Convert between artifact containers",
		Description: "Read every array at IN and write it to OUT. Either side may be a directory of\n" +
			".npy files, an .npz archive or a .pbnd bundle; IN may also be .safetensors and\n" +
			"OUT may be .safetensors. Values and key order are preserved.",
		Usage: "parity pack IN OUT [flags]",
		Examples: []cli.Example{
			{
				Description: "Bundle an activation dump with per-entry compression",
				Command:     "parity pack artifacts/py_out py_out.pbnd --compression auto",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("pack", pflag.ContinueOnError)
			flags.BoolVar(&compress, "compress", false, "deflate .npz entries")
			flags.StringVar(&compression, "compression", "none", "bundle compression: none, lz4, zstd, bg4_lz4, auto")
			a.commonFlags(flags)
			return flags
		},
		Run: func(args []string) error {
			if err := cli.ExactArgs(args, 2, "IN", "OUT"); err != nil {
				return err
			}
			comp, err := bundle.ParseCompression(compression)
			if err != nil {
				return cli.Usagef("--compression: %v", err)
			}
			_, logger, err := a.setup()
			if err != nil {
				return err
			}

			set, err := readAny(context.Background(), args[0], logger)
			if err != nil {
				return err
			}

			if loader.FormatFromPath(args[1]) == loader.FormatSafeTensors {
				err = loader.WriteSafeTensors(args[1], set, nil)
			} else {
				err = artifact.Save(args[1], set, artifact.SaveOptions{
					NPZ:    npz.Options{Compress: compress},
					Bundle: bundle.WriterOptions{Compression: comp, CreatedBy: "parity " + version},
				})
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Packed %d arrays (%d bytes) into %s\n", set.Len(), set.NumBytes(), args[1])
			return nil
		},
	}
}
