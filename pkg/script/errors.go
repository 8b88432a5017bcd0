package script

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// ErrBudgetExceeded reports a run interrupted by the execution budget.
var ErrBudgetExceeded = errors.New("script: execution budget exceeded")

// RuntimeError wraps any failure raised while a script ran: syntax errors,
// thrown values, interrupted runs and panics inside bindings. Mutations made
// before the failure stay applied.
type RuntimeError struct {
	RunID   string
	Trigger Trigger
	Err     error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("script: %s run %s failed: %s", e.Trigger, e.RunID, describe(e.Err))
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// SyntaxError reports whether the failure happened while compiling the script.
func (e *RuntimeError) SyntaxError() bool {
	var syntax *goja.CompilerSyntaxError
	return errors.As(e.Err, &syntax)
}

func describe(err error) string {
	if err == nil {
		return "unknown error"
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return exception.Value().String()
	}
	return err.Error()
}
