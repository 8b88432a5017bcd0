package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goliatone/go-formscript/internal/config"
	"github.com/goliatone/go-formscript/internal/logging"
	"github.com/goliatone/go-formscript/internal/prompt"
	"github.com/goliatone/go-formscript/internal/server"
	"github.com/goliatone/go-formscript/internal/store"
	"github.com/goliatone/go-formscript/pkg/formschema"
	"github.com/goliatone/go-formscript/pkg/session"
	"github.com/goliatone/go-formscript/pkg/typings"
)

func runFields(ctx context.Context, args []string) error {
	fs := newFlagSet("fields")
	var src designSource
	src.bind(fs)
	format := fs.String("format", "text", "output format: text, json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	design, err := src.load(ctx)
	if err != nil {
		return err
	}
	fields := formschema.Extract(design.Schema)

	if *format != "text" {
		return writeEncoded(os.Stdout, *format, map[string]any{
			"fields":  fields,
			"buttons": design.Buttons,
		})
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCRIPT KEY\tKEY\tTYPE\tCOMPONENT\tLABEL")
	for _, field := range fields {
		label := field.Label
		if field.Required {
			label += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", field.ScriptKey(), field.Key, field.Type, field.Component, label)
	}
	if len(design.Buttons) > 0 {
		fmt.Fprintln(tw, "\nBUTTON\tLABEL\tACTION\tCOLOR\t")
		for _, button := range design.Buttons {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", button.ID, button.Label, button.Action, button.Color)
		}
	}
	return tw.Flush()
}

func runTypings(ctx context.Context, args []string) error {
	fs := newFlagSet("typings")
	var src designSource
	src.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	design, err := src.load(ctx)
	if err != nil {
		return err
	}
	out, err := typings.Declarations(formschema.Extract(design.Schema))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, out)
	return err
}

func runQuick(ctx context.Context, args []string) error {
	fs := newFlagSet("quick")
	var src designSource
	src.bind(fs)
	action := fs.String("action", "", "quick action: "+strings.Join(typings.QuickActions(), ", "))
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(map[string]string{"action": *action}); err != nil {
		return err
	}

	design, err := src.load(ctx)
	if err != nil {
		return err
	}
	out, err := typings.QuickAction(*action, formschema.Extract(design.Schema))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, out)
	return err
}

func runSnippet(_ context.Context, args []string) error {
	fs := newFlagSet("snippet")
	name := fs.String("name", "", "snippet to print; lists snippets when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" {
		for _, snippet := range typings.Snippets() {
			fmt.Fprintln(os.Stdout, snippet)
		}
		return nil
	}
	body, ok := typings.Snippet(*name)
	if !ok {
		return fmt.Errorf("unknown snippet %q", *name)
	}
	_, err := fmt.Fprint(os.Stdout, body)
	return err
}

// previewEnv holds what the run command builds from the service
// configuration.
type previewEnv struct {
	opts []session.Option
}

func loadRuntime(path, level string) (previewEnv, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return previewEnv{}, err
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.New(os.Stderr, logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return previewEnv{}, err
	}
	evaluator, err := cfg.Rules.Evaluator()
	if err != nil {
		return previewEnv{}, err
	}
	return previewEnv{
		opts: []session.Option{
			session.WithLogger(logger),
			session.WithExecutor(cfg.Script.Executor(logger)),
			session.WithEvaluator(evaluator),
		},
	}, nil
}

func runPreview(ctx context.Context, args []string) error {
	fs := newFlagSet("run")
	var src designSource
	src.bind(fs)
	taskPath := fs.String("task", "", "saved task config (JSON or YAML)")
	valuesPath := fs.String("values", "", "initial form values (JSON or YAML object)")
	configPath := fs.String("config", "", "service configuration file")
	logLevel := fs.String("log-level", "warn", "log level for script output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := loadRuntime(*configPath, *logLevel)
	if err != nil {
		return err
	}
	design, err := src.load(ctx)
	if err != nil {
		return err
	}
	cfg, err := readTaskConfig(*taskPath)
	if err != nil {
		return err
	}
	values, err := readValues(*valuesPath)
	if err != nil {
		return err
	}

	sess := session.OpenDesign(ctx, design, cfg, rt.opts...)
	if report := sess.Report(); !report.Empty() {
		fmt.Fprintf(os.Stderr, "warning: task config does not match the design: %+v\n", report)
	}
	return prompt.Preview(ctx, prompt.NewSurveyDriver(os.Stdout), sess, values)
}

func runServe(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	configPath := fs.String("config", "", "service configuration file")
	addr := fs.String("addr", "", "listen address, overrides the configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger, err := logging.New(os.Stderr, logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	evaluator, err := cfg.Rules.Evaluator()
	if err != nil {
		return err
	}

	tasks, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer tasks.Close()

	srv := server.New(tasks,
		server.WithLogger(logger),
		server.WithExecutor(cfg.Script.Executor(logger)),
		server.WithEvaluator(evaluator),
		server.WithDefaultEventMode(cfg.Script.DefaultEventMode),
	)
	return server.Run(ctx, server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, srv.Handler(), logger)
}
