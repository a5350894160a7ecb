package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/meigma/trfs"
)

func runStat(ctx context.Context, e *env, args []string) error {
	var (
		source sourceFlags
		logs   logFlags
	)
	flagSet := pflag.NewFlagSet("stat", pflag.ContinueOnError)
	source.add(flagSet)

	if done, err := parseFlags(flagSet, &logs, e, args); done || err != nil {
		return err
	}
	path, names, err := source.archiveArgs(flagSet.Args())
	if err != nil {
		return err
	}

	a, closeArchive, err := source.open(ctx, e.logger, path)
	if err != nil {
		return err
	}
	defer closeArchive()

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tOFFSET\tSIZE\tSTORED")
	row := func(name string, entry trfs.FileEntry) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", name, entry.Offset, entry.Size, entry.CompressedSize)
	}

	if len(names) == 0 {
		for name, entry := range a.Paths() {
			row(name, entry)
		}
		return tw.Flush()
	}

	var missing int
	for _, name := range names {
		entry, err := a.Stat(name)
		if err != nil {
			fmt.Fprintf(e.stderr, "%v\n", err)
			missing++
			continue
		}
		row(name, entry)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d paths not found: %w", missing, len(names), trfs.ErrNotFound)
	}
	return nil
}
