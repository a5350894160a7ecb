package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/meigma/trfs"
	"github.com/meigma/trfs/cache"
	"github.com/meigma/trfs/cache/disk"
	trfshttp "github.com/meigma/trfs/http"
)

// sourceFlags select where an archive is read from.
type sourceFlags struct {
	url        string
	cacheDir   string
	cacheBytes int64
}

func (f *sourceFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.url, "url", "", "read the archive over HTTP instead of from a local path")
	flagSet.StringVar(&f.cacheDir, "cache-dir", "", "keep blocks fetched with --url in this directory")
	flagSet.Int64Var(&f.cacheBytes, "cache-size", 64<<20, "block cache limit in bytes for --url reads (0 = unlimited)")
}

// archiveArgs splits positional arguments into the archive location and
// the remaining virtual paths. With --url the archive is not positional.
func (f *sourceFlags) archiveArgs(args []string) (string, []string, error) {
	if f.url != "" {
		return "", args, nil
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: missing archive path", errUsage)
	}
	return args[0], args[1:], nil
}

// open loads the archive from a local path or, when --url is set, over
// HTTP behind a block cache. The returned function releases it.
func (f *sourceFlags) open(ctx context.Context, logger *slog.Logger, path string) (*trfs.Archive, func() error, error) {
	if f.url == "" {
		af, err := trfs.Load(path, trfs.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return af.Archive, af.Close, nil
	}

	remote, err := trfshttp.NewSource(ctx, f.url, trfshttp.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", f.url, err)
	}

	var store cache.Store
	if f.cacheDir != "" {
		if store, err = disk.New(f.cacheDir, disk.WithMaxBytes(f.cacheBytes)); err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
	} else {
		store = cache.NewMemory(f.cacheBytes)
	}
	src, err := cache.Wrap(remote, store)
	if err != nil {
		return nil, nil, err
	}

	a, err := trfs.New(src, trfs.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", f.url, err)
	}
	done := func() error {
		stats := src.Stats()
		logger.Debug("block cache", "hits", stats.Hits, "misses", stats.Misses, "bypass", stats.Bypass)
		return nil
	}
	return a, done, nil
}
