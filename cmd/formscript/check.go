package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/goliatone/go-formscript/internal/config"
	"github.com/goliatone/go-formscript/pkg/formschema"
	"github.com/goliatone/go-formscript/pkg/script"
	"github.com/goliatone/go-formscript/pkg/taskconfig"
	"github.com/goliatone/go-formscript/pkg/visibility"
)

type violation struct {
	location string
	message  string
}

// errViolations reports that check printed violations.
type errViolations int

func (e errViolations) Error() string {
	return fmt.Sprintf("%d violations", int(e))
}

func runCheck(ctx context.Context, args []string) error {
	fs := newFlagSet("check")
	var src designSource
	src.bind(fs)
	taskPath := fs.String("task", "", "saved task config (JSON or YAML)")
	configPath := fs.String("config", "", "service configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(map[string]string{"task": *taskPath}); err != nil {
		return err
	}

	svc, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	evaluator, err := svc.Rules.Evaluator()
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

	violations := checkTask(design, *cfg, svc.Script.Executor(nil), evaluator)
	if len(violations) == 0 {
		return nil
	}
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].location == violations[j].location {
			return violations[i].message < violations[j].message
		}
		return violations[i].location < violations[j].location
	})
	for _, v := range violations {
		fmt.Fprintf(os.Stderr, "%s: %s -> %s\n", *taskPath, v.location, v.message)
	}
	return errViolations(len(violations))
}

// checkTask lists everything in cfg that would be dropped or fail when the
// task opens against design.
func checkTask(design formschema.Design, cfg taskconfig.TaskConfig, executor *script.Executor, evaluator visibility.Evaluator) []violation {
	var result []violation

	fields := formschema.Extract(design.Schema)
	state, report := taskconfig.Restore(fields, design.Buttons, cfg)
	for _, key := range report.DroppedFields {
		result = append(result, violation{"fieldSettings > " + key, "field is not in the design"})
	}
	for _, id := range report.DroppedButtons {
		result = append(result, violation{"buttonSettings > " + id, "button is not in the design"})
	}
	for _, key := range report.DroppedRules {
		result = append(result, violation{"fieldRules > " + key, "field is not in the design"})
	}
	if report.InvalidEventMode != "" {
		result = append(result, violation{"scriptEventType", fmt.Sprintf("unknown event mode %q, %s is used", report.InvalidEventMode, script.DefaultEventMode)})
	}

	if err := cfg.Assignment.Validate(); err != nil {
		result = append(result, violation{"assignmentRule", err.Error()})
	}
	if err := executor.Check(cfg.FieldScript); err != nil {
		result = append(result, violation{"fieldScript", err.Error()})
	}

	ruleCtx := visibility.Context{Values: zeroValues(fields), Extras: map[string]any{}}
	for key, rule := range state.Rules {
		for name, condition := range map[string]string{"visibleWhen": rule.VisibleWhen, "readonlyWhen": rule.ReadonlyWhen} {
			if condition == "" {
				continue
			}
			if _, err := evaluator.Eval(key, condition, ruleCtx); err != nil {
				result = append(result, violation{"fieldRules > " + key + " > " + name, err.Error()})
			}
		}
	}
	return result
}

// zeroValues gives every field a value of its type so rules are checked
// without tripping over missing keys.
func zeroValues(fields []formschema.FormField) map[string]any {
	values := make(map[string]any, len(fields))
	for _, field := range fields {
		switch field.Type {
		case formschema.FieldTypeNumber:
			values[field.ScriptKey()] = float64(0)
		case formschema.FieldTypeBoolean:
			values[field.ScriptKey()] = false
		default:
			values[field.ScriptKey()] = ""
		}
	}
	return values
}
