package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/meigma/trfs"
)

func runPack(ctx context.Context, e *env, args []string) error {
	var (
		output          string
		manifestPath    string
		codecName       string
		workers         int
		continueOnError bool
		strict          bool
		logs            logFlags
	)
	flagSet := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	flagSet.StringVarP(&output, "output", "o", "", "archive to write (required)")
	flagSet.StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest listing dirs and files to pack")
	flagSet.StringVar(&codecName, "codec", "", "compress every file with this codec (zstd, lz4); default picks per file")
	flagSet.IntVar(&workers, "workers", 0, "parallel compression workers (default GOMAXPROCS)")
	flagSet.BoolVar(&continueOnError, "continue-on-error", false, "skip files that fail instead of aborting")
	flagSet.BoolVar(&strict, "strict", false, "fail when a source file changes while it is read")

	if done, err := parseFlags(flagSet, &logs, e, args); done || err != nil {
		return err
	}
	if output == "" {
		return fmt.Errorf("%w: pack needs --output", errUsage)
	}

	m := &manifest{}
	if manifestPath != "" {
		var err error
		if m, err = loadManifest(manifestPath); err != nil {
			return err
		}
	}
	dirs := append(m.Dirs, flagSet.Args()...)
	if len(dirs) == 0 && len(m.Files) == 0 {
		return fmt.Errorf("%w: nothing to pack; pass directories or --manifest", errUsage)
	}
	if codecName == "" {
		codecName = m.Codec
	}

	opts := []trfs.BuildOption{
		trfs.BuildWithLogger(e.logger),
		trfs.BuildWithWorkers(workers),
		trfs.BuildWithContinueOnError(continueOnError),
	}
	if codecName != "" {
		alg, err := trfs.ParseAlgorithm(codecName)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		opts = append(opts, trfs.BuildWithCodec(alg))
	}
	if strict {
		opts = append(opts, trfs.BuildWithChangeDetection(trfs.ChangeDetectionStrict))
	}

	b, err := trfs.NewBuilder(opts...)
	if err != nil {
		return err
	}

	var skipped []error
	collect := func(err error) error {
		if err == nil {
			return nil
		}
		if !continueOnError || ctx.Err() != nil {
			return err
		}
		skipped = append(skipped, err)
		return nil
	}
	for _, dir := range dirs {
		if err := collect(b.InsertDir(ctx, dir)); err != nil {
			return err
		}
	}
	for _, f := range m.Files {
		if err := collect(b.InsertFile(ctx, f.Source, f.Path)); err != nil {
			return err
		}
	}

	stats, err := b.Write(output)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s: %d files, table %d bytes, data %d bytes\n",
		output, stats.Files, stats.TableSize, stats.DataSize)

	if len(skipped) > 0 {
		return fmt.Errorf("some files were skipped: %w", errors.Join(skipped...))
	}
	return nil
}
