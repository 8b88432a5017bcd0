package script

import (
	"github.com/goliatone/go-formscript/pkg/fieldsettings"
	"github.com/goliatone/go-formscript/pkg/formschema"
)

// Host implements FieldControl over the settings store and value snapshot of
// one form. Values are kept under the structural key of each field.
type Host struct {
	settings *fieldsettings.Store
	keys     Keys
	values   map[string]any
	changes  map[string]any
}

var _ FieldControl = (*Host)(nil)

// NewHost builds a host for fields. values may be keyed by script key or by
// structural key; entries that address no field are discarded.
func NewHost(fields []formschema.FormField, settings *fieldsettings.Store, values map[string]any) *Host {
	keys := NewKeys(fields)
	return &Host{
		settings: settings,
		keys:     keys,
		values:   keys.Seed(values),
		changes:  make(map[string]any),
	}
}

// GetFieldValue returns a copy of the current value of key.
func (h *Host) GetFieldValue(key string) (any, bool) {
	fieldKey, ok := h.keys.Resolve(key)
	if !ok {
		return nil, false
	}
	value, ok := h.values[fieldKey]
	if !ok {
		return nil, false
	}
	return cloneValue(value), true
}

// SetFieldValue writes value for key.
func (h *Host) SetFieldValue(key string, value any) bool {
	fieldKey, ok := h.keys.Resolve(key)
	if !ok {
		return false
	}
	h.values[fieldKey] = cloneValue(value)
	h.changes[fieldKey] = cloneValue(value)
	return true
}

// SetFieldVisible updates the visible flag of key.
func (h *Host) SetFieldVisible(key string, visible bool) bool {
	fieldKey, ok := h.keys.Resolve(key)
	if !ok {
		return false
	}
	return h.settings.Apply(fieldKey, fieldsettings.Patch{Visible: fieldsettings.Bool(visible)})
}

// SetFieldReadonly updates the readonly flag of key.
func (h *Host) SetFieldReadonly(key string, readonly bool) bool {
	fieldKey, ok := h.keys.Resolve(key)
	if !ok {
		return false
	}
	return h.settings.Apply(fieldKey, fieldsettings.Patch{Readonly: fieldsettings.Bool(readonly)})
}

// FormValues returns a copy of all current values keyed by script key, the
// shape scripts see as formValues.
func (h *Host) FormValues() map[string]any {
	return h.keys.ScriptView(h.values)
}

// Values returns a copy of all current values keyed by structural key.
func (h *Host) Values() map[string]any {
	out := make(map[string]any, len(h.values))
	for key, value := range h.values {
		out[key] = cloneValue(value)
	}
	return out
}

// Changes returns the values written through SetFieldValue, keyed by
// structural key.
func (h *Host) Changes() map[string]any {
	out := make(map[string]any, len(h.changes))
	for key, value := range h.changes {
		out[key] = cloneValue(value)
	}
	return out
}

// Settings exposes the store the host writes to.
func (h *Host) Settings() *fieldsettings.Store {
	return h.settings
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}
