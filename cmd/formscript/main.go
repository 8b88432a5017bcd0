package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/goliatone/go-formscript/internal/prompt"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{"fields", "list the fields and buttons of a form design", runFields},
	{"typings", "print editor declarations for a form design", runTypings},
	{"quick", "print a quick-action script for a form design", runQuick},
	{"snippet", "print a script snippet, or list them", runSnippet},
	{"check", "check a saved task config against a form design", runCheck},
	{"run", "preview a task config interactively", runPreview},
	{"serve", "serve the HTTP API", runServe},
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	name := flag.Arg(0)
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err := cmd.run(ctx, flag.Args()[1:])
		stop()
		if err == nil || errors.Is(err, prompt.ErrAborted) || errors.Is(err, flag.ErrHelp) {
			return
		}
		var failed errViolations
		if errors.As(err, &failed) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage()
	os.Exit(2)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\nCommands:\n", filepath.Base(os.Args[0]))
	names := make([]string, 0, len(commands))
	width := 0
	for _, cmd := range commands {
		names = append(names, cmd.name)
		width = max(width, len(cmd.name))
	}
	sort.Strings(names)
	for _, name := range names {
		for _, cmd := range commands {
			if cmd.name == name {
				fmt.Fprintf(out, "  %-*s  %s\n", width, cmd.name, cmd.summary)
			}
		}
	}
	fmt.Fprintf(out, "\nRun '%s <command> -h' for command flags.\n", filepath.Base(os.Args[0]))
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s %s [flags]\n", filepath.Base(os.Args[0]), name)
		fs.PrintDefaults()
	}
	return fs
}

func required(values map[string]string) error {
	var missing []string
	for name, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
}
