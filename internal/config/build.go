package config

import (
	"log/slog"

	"github.com/goliatone/go-formscript/pkg/script"
	"github.com/goliatone/go-formscript/pkg/visibility"
	"github.com/goliatone/go-formscript/pkg/visibility/celrule"
	"github.com/goliatone/go-formscript/pkg/visibility/expr"
)

// Executor builds a script executor with the configured limits.
func (c ScriptConfig) Executor(logger *slog.Logger) *script.Executor {
	return script.NewExecutor(
		script.WithLogger(logger),
		script.WithBudget(c.Budget),
		script.WithMaxCallStackSize(c.MaxCallStackSize),
	)
}

// Evaluator builds the field rule evaluator for the configured dialect.
func (c RulesConfig) Evaluator() (visibility.Evaluator, error) {
	dialect, err := visibility.ParseDialect(string(c.Dialect))
	if err != nil {
		return nil, err
	}
	if dialect == visibility.DialectCEL {
		return celrule.New()
	}
	return expr.New(), nil
}
