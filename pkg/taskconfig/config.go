// Package taskconfig converts the state of a form-task editing session to and
// from the persisted task configuration.
package taskconfig

import (
	"sort"
	"strings"

	"github.com/goliatone/go-formscript/pkg/fieldsettings"
	"github.com/goliatone/go-formscript/pkg/formschema"
	"github.com/goliatone/go-formscript/pkg/script"
)

// FieldRule holds declarative conditions for one field. An empty condition is
// not applied.
type FieldRule struct {
	VisibleWhen  string `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`
	ReadonlyWhen string `json:"readonlyWhen,omitempty" yaml:"readonlyWhen,omitempty"`
}

// Empty reports whether the rule has no condition.
func (r FieldRule) Empty() bool {
	return strings.TrimSpace(r.VisibleWhen) == "" && strings.TrimSpace(r.ReadonlyWhen) == ""
}

// Summary is informational and recomputed on every save.
type Summary struct {
	VisibleFields  int `json:"visibleFieldsCount" yaml:"visibleFieldsCount"`
	TotalFields    int `json:"totalFieldsCount" yaml:"totalFieldsCount"`
	VisibleButtons int `json:"visibleButtonsCount" yaml:"visibleButtonsCount"`
	TotalButtons   int `json:"totalButtonsCount" yaml:"totalButtonsCount"`
}

// TaskConfig is the persisted document of one form-task.
type TaskConfig struct {
	Name       string         `json:"name" yaml:"name"`
	FormID     string         `json:"formId,omitempty" yaml:"formId,omitempty"`
	FormName   string         `json:"formName,omitempty" yaml:"formName,omitempty"`
	Message    string         `json:"message,omitempty" yaml:"message,omitempty"`
	Assignment AssignmentRule `json:"assignmentRule" yaml:"assignmentRule"`

	FieldSettings  map[string]fieldsettings.FieldSetting  `json:"fieldSettings" yaml:"fieldSettings"`
	ButtonSettings map[string]fieldsettings.ButtonSetting `json:"buttonSettings" yaml:"buttonSettings"`
	FieldRules     map[string]FieldRule                   `json:"fieldRules,omitempty" yaml:"fieldRules,omitempty"`

	FieldScript     string           `json:"fieldScript" yaml:"fieldScript"`
	ScriptEventType script.EventMode `json:"scriptEventType" yaml:"scriptEventType"`

	// Buttons lists the visible buttons and AllButtons every design button,
	// for the runtime that draws the task. Neither is read back on restore.
	Buttons    []formschema.Button `json:"buttons" yaml:"buttons"`
	AllButtons []formschema.Button `json:"allButtons" yaml:"allButtons"`

	Summary Summary `json:"summary" yaml:"summary"`
}

// State is the observable state of a form-task editor.
type State struct {
	Name       string
	FormID     string
	FormName   string
	Message    string
	Assignment AssignmentRule

	Fields   []formschema.FormField
	Settings *fieldsettings.Store
	Buttons  *fieldsettings.ButtonStore
	Rules    map[string]FieldRule
	Script   script.Config
}

// Report lists what a restore could not carry over.
type Report struct {
	DroppedFields  []string
	DroppedButtons []string
	DroppedRules   []string
	// InvalidEventMode holds a saved mode that was replaced by the default.
	InvalidEventMode string
}

// Empty reports whether the restore was lossless.
func (r Report) Empty() bool {
	return len(r.DroppedFields) == 0 && len(r.DroppedButtons) == 0 && len(r.DroppedRules) == 0 && r.InvalidEventMode == ""
}

// Serialize builds the persisted document for state. Script text is stored
// verbatim.
func Serialize(state State) TaskConfig {
	settings := state.Settings
	if settings == nil {
		settings = fieldsettings.Initialize(state.Fields, nil)
	}
	buttons := state.Buttons
	if buttons == nil {
		buttons, _ = fieldsettings.InitializeButtons(nil, nil)
	}

	mode := state.Script.ScriptEventType
	if mode == "" {
		mode = script.DefaultEventMode
	}

	cfg := TaskConfig{
		Name:            state.Name,
		FormID:          state.FormID,
		FormName:        state.FormName,
		Message:         state.Message,
		Assignment:      state.Assignment,
		FieldSettings:   settings.Snapshot(),
		ButtonSettings:  buttons.Snapshot(),
		FieldScript:     state.Script.FieldScript,
		ScriptEventType: mode,
		Buttons:         buttons.VisibleButtons(),
		AllButtons:      buttons.Buttons(),
		Summary: Summary{
			VisibleFields:  settings.VisibleCount(),
			TotalFields:    settings.Len(),
			VisibleButtons: buttons.VisibleCount(),
			TotalButtons:   buttons.Len(),
		},
	}
	for key, rule := range state.Rules {
		if rule.Empty() {
			continue
		}
		if cfg.FieldRules == nil {
			cfg.FieldRules = make(map[string]FieldRule)
		}
		cfg.FieldRules[key] = rule
	}
	return cfg
}

// Restore rebuilds editor state for the current schema from a saved document.
// Entries for fields or buttons the schema no longer has are dropped and
// listed in the report.
func Restore(fields []formschema.FormField, buttons []formschema.Button, cfg TaskConfig) (State, Report) {
	var report Report

	settings, droppedFields := fieldsettings.InitializeWithReport(fields, cfg.FieldSettings)
	buttonStore, droppedButtons := fieldsettings.InitializeButtons(buttons, cfg.ButtonSettings)
	report.DroppedFields = droppedFields
	report.DroppedButtons = droppedButtons

	rules := make(map[string]FieldRule, len(cfg.FieldRules))
	for key, rule := range cfg.FieldRules {
		if !settings.Has(key) {
			report.DroppedRules = append(report.DroppedRules, key)
			continue
		}
		if !rule.Empty() {
			rules[key] = rule
		}
	}
	sort.Strings(report.DroppedRules)

	mode, err := script.ParseEventMode(string(cfg.ScriptEventType))
	if err != nil {
		report.InvalidEventMode = string(cfg.ScriptEventType)
		mode = script.DefaultEventMode
	}

	state := State{
		Name:       cfg.Name,
		FormID:     cfg.FormID,
		FormName:   cfg.FormName,
		Message:    cfg.Message,
		Assignment: cfg.Assignment,
		Fields:     append([]formschema.FormField(nil), fields...),
		Settings:   settings,
		Buttons:    buttonStore,
		Rules:      rules,
		Script:     script.Config{FieldScript: cfg.FieldScript, ScriptEventType: mode},
	}
	return state, report
}
