package formschema

import "strings"

// FieldType is the semantic type declared for a field.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeNumber   FieldType = "number"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDate     FieldType = "date"
	FieldTypeDatetime FieldType = "datetime"
)

// ParseFieldType maps a declared schema type onto FieldType. An empty type is
// a string field and integer is folded into number; anything else is kept as
// declared.
func ParseFieldType(raw string) FieldType {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "":
		return FieldTypeString
	case "integer":
		return FieldTypeNumber
	case "date-time":
		return FieldTypeDatetime
	default:
		return FieldType(value)
	}
}

// Known reports whether the type belongs to the typed set understood by the
// script authoring aids.
func (t FieldType) Known() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeDate, FieldTypeDatetime:
		return true
	default:
		return false
	}
}

// FormField is one addressable field of a flattened design.
type FormField struct {
	Key           string    `json:"key" yaml:"key"`
	NormalizedKey string    `json:"normalizedKey" yaml:"normalizedKey"`
	Label         string    `json:"label" yaml:"label"`
	Type          FieldType `json:"type" yaml:"type"`
	Component     string    `json:"component" yaml:"component"`
	Required      bool      `json:"required" yaml:"required"`
}

// ScriptKey returns the key script authors use for the field.
func (f FormField) ScriptKey() string {
	if f.NormalizedKey != "" {
		return f.NormalizedKey
	}
	return f.Key
}

// Extract flattens the schema tree depth-first in document order.
func Extract(root Node) []FormField {
	fields := make([]FormField, 0)
	collectFields(root.Children, "", &fields)
	return fields
}

// ExtractFields parses a design document and flattens its schema. A malformed
// document yields an empty list together with an error wrapping
// ErrSchemaMalformed.
func ExtractFields(raw []byte) ([]FormField, error) {
	design, err := ParseDesign(raw)
	if err != nil {
		return []FormField{}, err
	}
	return Extract(design.Schema), nil
}

func collectFields(nodes []Node, parentPath string, out *[]FormField) {
	for _, node := range nodes {
		path := node.Name
		if parentPath != "" {
			path = parentPath + "." + node.Name
		}
		switch node.Kind {
		case KindContainer:
			collectFields(node.Children, path, out)
		case KindLeaf:
			*out = append(*out, newFormField(path, node))
		}
	}
}

func newFormField(path string, node Node) FormField {
	normalized := NormalizeKey(path)
	label := SanitizeLabel(node.Title)
	if label == "" {
		label = normalized
	}
	return FormField{
		Key:           path,
		NormalizedKey: normalized,
		Label:         label,
		Type:          ParseFieldType(node.Type),
		Component:     node.Component,
		Required:      node.Required,
	}
}

// NormalizeKey derives the script-facing name of a structural key. Designer
// keys look like "u0migqzm2uo.salary" or "card.section.salary"; the technical
// identifier and any container segments are dropped, leaving "salary". Keys
// without a usable segment are returned unchanged. The result of a non-empty
// segment never contains a dot, which makes the function idempotent.
func NormalizeKey(key string) string {
	if !strings.Contains(key, ".") {
		return key
	}
	parts := strings.Split(key, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return key
}
