// Package celrule evaluates field rules written in the Common Expression
// Language. Rules see three variables: `values` and `extras` as
// map(string, dyn) and `field`, the key of the field being decided.
//
//	values.musteriTipi == "Bireysel" && has(values.vergiNo)
package celrule

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/goliatone/go-formscript/pkg/visibility"
)

// Evaluator compiles rules once and caches the programs by source.
type Evaluator struct {
	env      *cel.Env
	programs sync.Map
}

var _ visibility.Evaluator = (*Evaluator)(nil)

// New builds the CEL environment.
func New() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("values", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("extras", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("field", cel.StringType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("celrule: environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Eval evaluates rule. An empty rule holds; a rule that does not produce a
// bool is an error.
func (e *Evaluator) Eval(fieldKey, rule string, ctx visibility.Context) (bool, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return true, nil
	}
	program, err := e.program(rule)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{
		"values": nonNil(ctx.Values),
		"extras": nonNil(ctx.Extras),
		"field":  fieldKey,
	})
	if err != nil {
		return false, fmt.Errorf("celrule: evaluate %q: %w", rule, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("celrule: rule %q produced %T, want bool", rule, out.Value())
	}
	return result, nil
}

func (e *Evaluator) program(rule string) (cel.Program, error) {
	if cached, ok := e.programs.Load(rule); ok {
		return cached.(cel.Program), nil
	}
	ast, issues := e.env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("celrule: compile %q: %w", rule, issues.Err())
	}
	output := ast.OutputType()
	if !output.IsExactType(cel.BoolType) && !output.IsExactType(cel.DynType) {
		return nil, errors.New("celrule: rule must evaluate to bool")
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("celrule: program %q: %w", rule, err)
	}
	e.programs.Store(rule, program)
	return program, nil
}

func nonNil(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return values
}
