package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
)

const (
	// DefaultBudget caps the wall-clock time of one run.
	DefaultBudget = 250 * time.Millisecond

	defaultMaxCallStackSize = 512
	maxCachedPrograms       = 64
	programName             = "fieldScript.js"
)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger routes failures and console output to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBudget sets the wall-clock budget of a run. Zero disables it.
func WithBudget(budget time.Duration) Option {
	return func(e *Executor) {
		if budget >= 0 {
			e.budget = budget
		}
	}
}

// WithMaxCallStackSize bounds script recursion.
func WithMaxCallStackSize(size int) Option {
	return func(e *Executor) {
		if size > 0 {
			e.maxCallStackSize = size
		}
	}
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(next func() string) Option {
	return func(e *Executor) {
		if next != nil {
			e.newRunID = next
		}
	}
}

// Executor evaluates field scripts. Each run gets a fresh JavaScript runtime
// holding only the field-control bindings; compiled programs are shared. Runs
// are serialised: Run holds the executor for the whole evaluation.
type Executor struct {
	mu               sync.Mutex
	logger           *slog.Logger
	budget           time.Duration
	maxCallStackSize int
	newRunID         func() string
	programs         map[string]*goja.Program
}

// NewExecutor constructs an Executor.
func NewExecutor(options ...Option) *Executor {
	e := &Executor{
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		budget:           DefaultBudget,
		maxCallStackSize: defaultMaxCallStackSize,
		newRunID:         func() string { return uuid.NewString() },
		programs:         make(map[string]*goja.Program),
	}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Result describes one run.
type Result struct {
	RunID    string
	Trigger  Trigger
	Duration time.Duration
	// Err is a *RuntimeError when the script failed. The run never panics and
	// never returns the error to the form; callers decide how to surface it.
	Err error
}

// Run evaluates source against host. Failures are logged and reported in the
// result; whatever the script changed before failing is kept.
func (e *Executor) Run(ctx context.Context, source string, trigger Trigger, host *Host) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := Result{RunID: e.newRunID(), Trigger: trigger}
	logger := e.logger.With("run_id", result.RunID, "trigger", trigger.String())

	started := time.Now()
	err := e.evaluate(ctx, source, host, logger)
	result.Duration = time.Since(started)

	if err != nil {
		runErr := &RuntimeError{RunID: result.RunID, Trigger: trigger, Err: err}
		result.Err = runErr
		logger.Warn("field script failed", "error", runErr.Error(), "duration", result.Duration)
		return result
	}
	logger.Debug("field script completed", "duration", result.Duration)
	return result
}

// Check compiles source without running it. A nil error means the script
// parses; it can still fail at run time.
func (e *Executor) Check(source string) error {
	if strings.TrimSpace(source) == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.compile(source)
	return err
}

func (e *Executor) evaluate(ctx context.Context, source string, host *Host, logger *slog.Logger) (err error) {
	if strings.TrimSpace(source) == "" {
		return nil
	}
	if host == nil {
		return errors.New("script: host is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	program, err := e.compile(source)
	if err != nil {
		return err
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(e.maxCallStackSize)
	if err := bindFieldControl(vm, host); err != nil {
		return fmt.Errorf("script: bind field control: %w", err)
	}
	if err := bindConsole(vm, logger); err != nil {
		return fmt.Errorf("script: bind console: %w", err)
	}

	if e.budget > 0 {
		timer := time.AfterFunc(e.budget, func() { vm.Interrupt(ErrBudgetExceeded) })
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("script: panic during run: %v", recovered)
		}
	}()

	_, err = vm.RunProgram(program)
	return interruptCause(err)
}

func (e *Executor) compile(source string) (*goja.Program, error) {
	if program, ok := e.programs[source]; ok {
		return program, nil
	}
	// Scripts are function bodies so authors can return early.
	program, err := goja.Compile(programName, "(function () {\n"+source+"\n})();", false)
	if err != nil {
		return nil, err
	}
	if len(e.programs) >= maxCachedPrograms {
		clear(e.programs)
	}
	e.programs[source] = program
	return program, nil
}

func interruptCause(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
	}
	return err
}

func bindFieldControl(vm *goja.Runtime, host *Host) error {
	bindings := map[string]func(goja.FunctionCall) goja.Value{
		FuncGetFieldValue: func(call goja.FunctionCall) goja.Value {
			value, ok := host.GetFieldValue(call.Argument(0).String())
			if !ok {
				return goja.Undefined()
			}
			return vm.ToValue(value)
		},
		FuncSetFieldValue: func(call goja.FunctionCall) goja.Value {
			host.SetFieldValue(call.Argument(0).String(), exportValue(call.Argument(1)))
			return goja.Undefined()
		},
		FuncSetFieldVisible: func(call goja.FunctionCall) goja.Value {
			host.SetFieldVisible(call.Argument(0).String(), call.Argument(1).ToBoolean())
			return goja.Undefined()
		},
		FuncSetFieldReadonly: func(call goja.FunctionCall) goja.Value {
			host.SetFieldReadonly(call.Argument(0).String(), call.Argument(1).ToBoolean())
			return goja.Undefined()
		},
	}
	for name, fn := range bindings {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}

	snapshot, err := frozenValues(vm, host.FormValues())
	if err != nil {
		return err
	}
	return vm.Set(GlobalFormValues, snapshot)
}

func frozenValues(vm *goja.Runtime, values map[string]any) (*goja.Object, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	obj := vm.NewObject()
	for _, key := range keys {
		if err := obj.Set(key, vm.ToValue(values[key])); err != nil {
			return nil, err
		}
	}

	freeze, ok := goja.AssertFunction(vm.GlobalObject().Get("Object").ToObject(vm).Get("freeze"))
	if !ok {
		return nil, errors.New("Object.freeze is not callable")
	}
	if _, err := freeze(goja.Undefined(), obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func bindConsole(vm *goja.Runtime, logger *slog.Logger) error {
	levels := map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	console := vm.NewObject()
	for name, level := range levels {
		if err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			logger.Log(context.Background(), level, "field script console", "message", consoleLine(call.Arguments))
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return vm.Set(GlobalConsole, console)
}

func consoleLine(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
			parts = append(parts, fmt.Sprint(arg))
			continue
		}
		if _, isObject := arg.(*goja.Object); isObject {
			parts = append(parts, fmt.Sprintf("%v", arg.Export()))
			continue
		}
		parts = append(parts, arg.String())
	}
	return strings.Join(parts, " ")
}

// exportValue converts a script value into plain Go data. Integral numbers
// come back as float64 so values keep one numeric representation.
func exportValue(value goja.Value) any {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil
	}
	return normalizeNumbers(value.Export())
}

func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case int64:
		return float64(typed)
	case int:
		return float64(typed)
	case int32:
		return float64(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeNumbers(item)
		}
		return out
	default:
		return value
	}
}
