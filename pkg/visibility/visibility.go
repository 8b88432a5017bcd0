// Package visibility evaluates declarative field rules. A rule is a boolean
// expression over the current form values; the session uses rules to derive
// the visible and readonly flags of a field before any script runs.
package visibility

import (
	"fmt"
	"strings"
)

// Evaluator decides a rule for one field.
type Evaluator interface {
	Eval(fieldKey, rule string, ctx Context) (bool, error)
}

// Context carries the inputs a rule may read. Values holds the form values
// keyed by script key; Extras carries caller data such as the task name.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldKey, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldKey, rule string, ctx Context) (bool, error) {
	return fn(fieldKey, rule, ctx)
}

// Dialect names a rule language.
type Dialect string

const (
	DialectExpr Dialect = "expr"
	DialectCEL  Dialect = "cel"
)

// ParseDialect reads a configured dialect name. Empty selects DialectExpr.
func ParseDialect(raw string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DialectExpr:
		return DialectExpr, nil
	case DialectCEL:
		return DialectCEL, nil
	default:
		return "", fmt.Errorf("visibility: unknown rule dialect %q", raw)
	}
}
