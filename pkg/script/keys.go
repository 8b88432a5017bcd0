package script

import "github.com/goliatone/go-formscript/pkg/formschema"

// Keys resolves either spelling of a field key to the field's structural key.
// A structural key always addresses its own field. A normalized key shared by
// several fields addresses the first of them in schema order; the others stay
// reachable by structural key.
type Keys struct {
	fields []formschema.FormField
	index  map[string]string
}

// NewKeys indexes fields.
func NewKeys(fields []formschema.FormField) Keys {
	keys := Keys{
		fields: fields,
		index:  make(map[string]string, len(fields)*2),
	}
	for _, field := range fields {
		if _, exists := keys.index[field.Key]; !exists {
			keys.index[field.Key] = field.Key
		}
	}
	for _, field := range fields {
		if _, exists := keys.index[field.ScriptKey()]; !exists {
			keys.index[field.ScriptKey()] = field.Key
		}
	}
	return keys
}

// Resolve returns the structural key addressed by key.
func (k Keys) Resolve(key string) (string, bool) {
	fieldKey, ok := k.index[key]
	return fieldKey, ok
}

// Seed copies values into a map keyed by structural key. Entries spelled with
// a structural key are applied last, so they win over a normalized spelling of
// the same field. Entries that address no field are discarded.
func (k Keys) Seed(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		if fieldKey, ok := k.index[key]; ok && fieldKey != key {
			out[fieldKey] = cloneValue(value)
		}
	}
	for key, value := range values {
		if fieldKey, ok := k.index[key]; ok && fieldKey == key {
			out[fieldKey] = cloneValue(value)
		}
	}
	return out
}

// ScriptView re-keys structural values by normalized key. Each name carries
// the value of the field it resolves to.
func (k Keys) ScriptView(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for _, field := range k.fields {
		name := field.ScriptKey()
		if _, done := out[name]; done {
			continue
		}
		if value, ok := values[k.index[name]]; ok {
			out[name] = cloneValue(value)
		}
	}
	return out
}
