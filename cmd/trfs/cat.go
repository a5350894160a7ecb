package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
)

func runCat(ctx context.Context, e *env, args []string) error {
	var (
		source sourceFlags
		logs   logFlags
	)
	flagSet := pflag.NewFlagSet("cat", pflag.ContinueOnError)
	source.add(flagSet)

	if done, err := parseFlags(flagSet, &logs, e, args); done || err != nil {
		return err
	}
	path, names, err := source.archiveArgs(flagSet.Args())
	if err != nil {
		return err
	}
	if len(names) != 1 {
		return fmt.Errorf("%w: cat takes exactly one virtual path", errUsage)
	}

	a, closeArchive, err := source.open(ctx, e.logger, path)
	if err != nil {
		return err
	}
	defer closeArchive()

	data, err := a.Open(names[0])
	if err != nil {
		return err
	}
	_, err = e.stdout.Write(data)
	return err
}
