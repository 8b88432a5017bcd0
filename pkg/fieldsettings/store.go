// Package fieldsettings holds the mutable per-field and per-button state of a
// form-task editing session.
package fieldsettings

import (
	"sort"

	"github.com/goliatone/go-formscript/pkg/formschema"
)

// FieldSetting is the runtime state of one field.
type FieldSetting struct {
	Visible  bool `json:"visible" yaml:"visible"`
	Readonly bool `json:"readonly" yaml:"readonly"`
	Required bool `json:"required" yaml:"required"`
}

// Default returns the setting a field starts with when nothing was saved.
func Default(field formschema.FormField) FieldSetting {
	return FieldSetting{Visible: true, Readonly: false, Required: field.Required}
}

// Patch carries a partial update. Nil members are left untouched.
type Patch struct {
	Visible  *bool
	Readonly *bool
	Required *bool
}

// Bool returns a pointer for building patches.
func Bool(value bool) *bool {
	return &value
}

// Store maps FormField.Key to FieldSetting for the fields of one form. Keys
// are fixed at initialisation; the store never grows afterwards.
type Store struct {
	keys     []string
	settings map[string]FieldSetting
}

// Initialize seeds one entry per field. Restored settings take precedence per
// key, fields without a restored entry get defaults and restored entries for
// fields that are no longer in the schema are dropped.
func Initialize(fields []formschema.FormField, restored map[string]FieldSetting) *Store {
	store, _ := InitializeWithReport(fields, restored)
	return store
}

// InitializeWithReport behaves like Initialize and also returns the sorted
// restored keys that were dropped because the schema no longer has them.
func InitializeWithReport(fields []formschema.FormField, restored map[string]FieldSetting) (*Store, []string) {
	store := &Store{
		keys:     make([]string, 0, len(fields)),
		settings: make(map[string]FieldSetting, len(fields)),
	}
	for _, field := range fields {
		if _, exists := store.settings[field.Key]; exists {
			continue
		}
		setting, ok := restored[field.Key]
		if !ok {
			setting = Default(field)
		}
		store.keys = append(store.keys, field.Key)
		store.settings[field.Key] = setting
	}

	var dropped []string
	for key := range restored {
		if _, ok := store.settings[key]; !ok {
			dropped = append(dropped, key)
		}
	}
	sort.Strings(dropped)
	return store, dropped
}

// Apply merges patch into the entry for key. Unknown keys are ignored and
// reported with false.
func (s *Store) Apply(key string, patch Patch) bool {
	if s == nil {
		return false
	}
	current, ok := s.settings[key]
	if !ok {
		return false
	}
	if patch.Visible != nil {
		current.Visible = *patch.Visible
	}
	if patch.Readonly != nil {
		current.Readonly = *patch.Readonly
	}
	if patch.Required != nil {
		current.Required = *patch.Required
	}
	s.settings[key] = current
	return true
}

// Replace overwrites the entry for key. Unknown keys are ignored.
func (s *Store) Replace(key string, setting FieldSetting) bool {
	if s == nil {
		return false
	}
	if _, ok := s.settings[key]; !ok {
		return false
	}
	s.settings[key] = setting
	return true
}

// Get returns the setting for key.
func (s *Store) Get(key string) (FieldSetting, bool) {
	if s == nil {
		return FieldSetting{}, false
	}
	setting, ok := s.settings[key]
	return setting, ok
}

// Has reports whether key is tracked.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of tracked fields.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.settings)
}

// Keys returns the tracked keys in schema order.
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Snapshot returns a copy of every setting.
func (s *Store) Snapshot() map[string]FieldSetting {
	out := make(map[string]FieldSetting, s.Len())
	if s == nil {
		return out
	}
	for key, setting := range s.settings {
		out[key] = setting
	}
	return out
}

// VisibleCount counts visible fields.
func (s *Store) VisibleCount() int {
	if s == nil {
		return 0
	}
	count := 0
	for _, setting := range s.settings {
		if setting.Visible {
			count++
		}
	}
	return count
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	if s == nil {
		return nil
	}
	return &Store{keys: s.Keys(), settings: s.Snapshot()}
}
