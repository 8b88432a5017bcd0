// Package session ties the form-task pipeline together for one open editor:
// schema extraction, settings, value snapshot, rules and the field script.
//
// A session serialises its triggers. Load and Change hold the session for the
// whole run, and values written by a script never start another run.
package session

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formscript/pkg/fieldsettings"
	"github.com/goliatone/go-formscript/pkg/formschema"
	"github.com/goliatone/go-formscript/pkg/script"
	"github.com/goliatone/go-formscript/pkg/taskconfig"
	"github.com/goliatone/go-formscript/pkg/visibility"
	"github.com/goliatone/go-formscript/pkg/visibility/expr"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExecutor shares an executor between sessions.
func WithExecutor(executor *script.Executor) Option {
	return func(s *Session) {
		if executor != nil {
			s.executor = executor
		}
	}
}

// WithEvaluator selects the field rule dialect.
func WithEvaluator(evaluator visibility.Evaluator) Option {
	return func(s *Session) {
		if evaluator != nil {
			s.evaluator = evaluator
		}
	}
}

// WithExtras exposes caller data to field rules under `extras.`.
func WithExtras(extras map[string]any) Option {
	return func(s *Session) {
		s.extras = extras
	}
}

// WithID fixes the session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithForm records the form the task uses when the saved config has none.
func WithForm(formID, formName string) Option {
	return func(s *Session) {
		s.formID, s.formName = formID, formName
	}
}

// Session is one open form-task editor.
type Session struct {
	mu sync.Mutex

	id        string
	logger    *slog.Logger
	executor  *script.Executor
	evaluator visibility.Evaluator
	extras    map[string]any
	formID    string
	formName  string

	fields    []formschema.FormField
	keys      script.Keys
	state     taskconfig.State
	values    map[string]any
	report    taskconfig.Report
	schemaErr error
}

// Outcome describes what one trigger did.
type Outcome struct {
	SessionID string
	RunID     string
	Trigger   script.Trigger
	// Ran is false when the event mode does not fire for the trigger, there is
	// no script, or a change was ignored.
	Ran bool
	// Settings, Values and Changes are keyed by structural key.
	Settings map[string]fieldsettings.FieldSetting
	Values   map[string]any
	Changes  map[string]any
	Err      error
	Duration time.Duration
}

// Open extracts the fields of design and restores saved state onto them. A
// malformed design opens a session without fields; the failure is logged and
// available from SchemaError.
func Open(ctx context.Context, design []byte, restored *taskconfig.TaskConfig, options ...Option) *Session {
	s := newSession(options)
	parsed, err := formschema.ParseDesign(design)
	if err != nil {
		s.schemaErr = err
		s.logger.ErrorContext(ctx, "form design could not be parsed", "error", err)
	}
	return s.open(ctx, parsed, restored)
}

// OpenDesign is Open for a design that was already parsed, such as one built
// by formschema.FromOpenAPI.
func OpenDesign(ctx context.Context, design formschema.Design, restored *taskconfig.TaskConfig, options ...Option) *Session {
	return newSession(options).open(ctx, design, restored)
}

func newSession(options []Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		evaluator: expr.New(),
		values:    make(map[string]any),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	if s.executor == nil {
		s.executor = script.NewExecutor(script.WithLogger(s.logger))
	}
	s.logger = s.logger.With("session_id", s.id)
	return s
}

func (s *Session) open(ctx context.Context, parsed formschema.Design, restored *taskconfig.TaskConfig) *Session {
	s.fields = formschema.Extract(parsed.Schema)
	s.keys = script.NewKeys(s.fields)

	cfg := taskconfig.TaskConfig{}
	if restored != nil {
		cfg = *restored
	}
	if cfg.FormID == "" {
		cfg.FormID, cfg.FormName = s.formID, s.formName
	}
	s.state, s.report = taskconfig.Restore(s.fields, parsed.Buttons, cfg)
	if !s.report.Empty() {
		s.logger.WarnContext(ctx, "saved task config does not match the form schema",
			"dropped_fields", s.report.DroppedFields,
			"dropped_buttons", s.report.DroppedButtons,
			"dropped_rules", s.report.DroppedRules,
			"invalid_event_mode", s.report.InvalidEventMode,
		)
	}
	s.logger.DebugContext(ctx, "session opened", "fields", len(s.fields), "buttons", s.state.Buttons.Len())
	return s
}

// Load seeds the value snapshot and fires the load trigger. Values may be
// keyed by script key or structural key; unknown keys are discarded.
func (s *Session) Load(ctx context.Context, values map[string]any) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = s.keys.Seed(values)
	return s.trigger(ctx, script.TriggerLoad)
}

// Change records a user edit and fires the change trigger. Unknown keys and
// edits that leave the value unchanged do nothing.
func (s *Session) Change(ctx context.Context, key string, value any) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	fieldKey, ok := s.keys.Resolve(key)
	if !ok {
		s.logger.DebugContext(ctx, "change ignored for unknown field", "field", key)
		return s.outcome(script.TriggerChange)
	}
	if current, exists := s.values[fieldKey]; exists && reflect.DeepEqual(current, value) {
		return s.outcome(script.TriggerChange)
	}
	s.values[fieldKey] = value
	return s.trigger(ctx, script.TriggerChange)
}

func (s *Session) trigger(ctx context.Context, trigger script.Trigger) Outcome {
	s.applyRules(ctx, trigger)

	out := s.outcome(trigger)
	cfg := s.state.Script
	if cfg.Empty() || !cfg.ScriptEventType.Fires(trigger) {
		return out
	}

	host := script.NewHost(s.fields, s.state.Settings, s.values)
	result := s.executor.Run(ctx, cfg.FieldScript, trigger, host)
	s.values = host.Values()

	out = s.outcome(trigger)
	out.Ran = true
	out.RunID = result.RunID
	out.Duration = result.Duration
	out.Changes = host.Changes()
	out.Err = result.Err
	if result.Err != nil {
		s.logger.WarnContext(ctx, "field script failed", "run_id", result.RunID, "trigger", trigger.String(), "error", result.Err)
	}
	return out
}

// applyRules evaluates the declarative rules in schema order. A rule that
// fails is logged and leaves the field as it was.
func (s *Session) applyRules(ctx context.Context, trigger script.Trigger) {
	if len(s.state.Rules) == 0 {
		return
	}
	rc := visibility.Context{Values: s.ruleValues(), Extras: s.extras}
	for _, key := range s.state.Settings.Keys() {
		rule, ok := s.state.Rules[key]
		if !ok {
			continue
		}
		if rule.VisibleWhen != "" {
			if visible, err := s.evaluator.Eval(key, rule.VisibleWhen, rc); err != nil {
				s.logger.WarnContext(ctx, "visibility rule failed", "field", key, "trigger", trigger.String(), "error", err)
			} else {
				s.state.Settings.Apply(key, fieldsettings.Patch{Visible: fieldsettings.Bool(visible)})
			}
		}
		if rule.ReadonlyWhen != "" {
			if readonly, err := s.evaluator.Eval(key, rule.ReadonlyWhen, rc); err != nil {
				s.logger.WarnContext(ctx, "readonly rule failed", "field", key, "trigger", trigger.String(), "error", err)
			} else {
				s.state.Settings.Apply(key, fieldsettings.Patch{Readonly: fieldsettings.Bool(readonly)})
			}
		}
	}
}

// ruleValues exposes values to rules under both spellings. A structural key
// wins over another field's normalized key.
func (s *Session) ruleValues() map[string]any {
	out := s.keys.ScriptView(s.values)
	for key, value := range s.values {
		out[key] = value
	}
	return out
}

func (s *Session) outcome(trigger script.Trigger) Outcome {
	return Outcome{
		SessionID: s.id,
		Trigger:   trigger,
		Settings:  s.state.Settings.Snapshot(),
		Values:    cloneValues(s.values),
		Changes:   map[string]any{},
	}
}

func cloneValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}
