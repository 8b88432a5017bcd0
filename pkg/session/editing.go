package session

import (
	"fmt"

	"github.com/goliatone/go-formscript/pkg/fieldsettings"
	"github.com/goliatone/go-formscript/pkg/formschema"
	"github.com/goliatone/go-formscript/pkg/script"
	"github.com/goliatone/go-formscript/pkg/taskconfig"
)

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// SchemaError returns the design parse failure, if any.
func (s *Session) SchemaError() error {
	return s.schemaErr
}

// Report returns what restoring the saved config could not carry over.
func (s *Session) Report() taskconfig.Report {
	return s.report
}

// Fields returns the extracted fields in schema order.
func (s *Session) Fields() []formschema.FormField {
	return append([]formschema.FormField(nil), s.fields...)
}

// Buttons returns the design buttons.
func (s *Session) Buttons() []formschema.Button {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Buttons.Buttons()
}

// Settings returns a copy of the current field settings.
func (s *Session) Settings() map[string]fieldsettings.FieldSetting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings.Snapshot()
}

// Values returns a copy of the value snapshot keyed by structural key.
func (s *Session) Values() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneValues(s.values)
}

// Script returns the current script configuration.
func (s *Session) Script() script.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Script
}

// SetScript replaces the script text. The text is not compiled here.
func (s *Session) SetScript(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Script.FieldScript = source
}

// SetEventMode sets when the script runs.
func (s *Session) SetEventMode(mode script.EventMode) error {
	if !mode.Valid() {
		return fmt.Errorf("session: unknown event mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Script.ScriptEventType = mode
	return nil
}

// SetFieldSetting edits a field by hand. Unknown keys report false.
func (s *Session) SetFieldSetting(key string, patch fieldsettings.Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings.Apply(key, patch)
}

// SetButtonVisible shows or hides a button. Unknown ids report false.
func (s *Session) SetButtonVisible(id string, visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Buttons.SetVisible(id, visible)
}

// SetRule attaches rule to the field key. An empty rule removes it. Unknown
// keys report false.
func (s *Session) SetRule(key string, rule taskconfig.FieldRule) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Settings.Has(key) {
		return false
	}
	if rule.Empty() {
		delete(s.state.Rules, key)
		return true
	}
	if s.state.Rules == nil {
		s.state.Rules = make(map[string]taskconfig.FieldRule)
	}
	s.state.Rules[key] = rule
	return true
}

// SetAssignment replaces the assignment rule.
func (s *Session) SetAssignment(rule taskconfig.AssignmentRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Assignment = rule
}

// SetName sets the task name.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Name = name
}

// SetMessage sets the message shown to the assignee.
func (s *Session) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Message = message
}

// Save validates the assignment and returns the document to persist.
func (s *Session) Save() (taskconfig.TaskConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.state.Assignment.Validate(); err != nil {
		return taskconfig.TaskConfig{}, fmt.Errorf("session: save: %w", err)
	}
	state := s.state
	state.Assignment = state.Assignment.Normalize()
	cfg := taskconfig.Serialize(state)
	s.logger.Info("task config saved",
		"visible_fields", cfg.Summary.VisibleFields,
		"total_fields", cfg.Summary.TotalFields,
		"visible_buttons", cfg.Summary.VisibleButtons,
		"total_buttons", cfg.Summary.TotalButtons,
	)
	return cfg, nil
}
