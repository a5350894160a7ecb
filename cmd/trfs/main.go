// trfs packs directories into trie archives and reads files back out of
// them.
//
// Usage:
//
//	trfs pack -o assets.trfs [--manifest build.yaml] [dir...]
//	trfs cat assets.trfs images/car.png > car.png
//	trfs cat --url https://cdn.example.com/assets.trfs images/car.png
//	trfs stat assets.trfs [path...]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
)

// errUsage marks errors caused by bad invocation.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// command is one trfs subcommand.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{name: "pack", summary: "build an archive from directories or a manifest", run: runPack},
	{name: "cat", summary: "write one stored file to stdout", run: runCat},
	{name: "stat", summary: "show stored entries", run: runStat},
}

// env carries the process streams so commands can be tested.
type env struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return fmt.Errorf("%w: missing command", errUsage)
		}
		return nil
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(ctx, &env{stdout: stdout, stderr: stderr}, args[1:])
		}
	}
	printUsage(stderr)
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "trfs manages trie-indexed compressed archives.\n\nUsage:\n  trfs <command> [flags] [args]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-6s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(w, "\nRun 'trfs <command> --help' for command flags.\n")
}

// logFlags are the logging flags shared by every command.
type logFlags struct {
	level  string
	format string
}

func (f *logFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.level, "log-level", "warn", "log level (debug, info, warn, error)")
	flagSet.StringVar(&f.format, "log-format", "text", "log format (text, json)")
}

// newLogger builds a stderr logger from the shared flags.
func (f *logFlags) newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.level)); err != nil {
		return nil, fmt.Errorf("%w: invalid --log-level %q", errUsage, f.level)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(f.format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: invalid --log-format %q", errUsage, f.format)
	}
}

// parseFlags parses args with flagSet and sets up e.logger. It returns
// done when help was requested.
func parseFlags(flagSet *pflag.FlagSet, logs *logFlags, e *env, args []string) (done bool, err error) {
	flagSet.SetOutput(e.stderr)
	logs.add(flagSet)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %w", errUsage, err)
	}
	logger, err := logs.newLogger(e.stderr)
	if err != nil {
		return false, err
	}
	e.logger = logger
	return false, nil
}
