package formschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// object is a decoded mapping that remembers key order. Designers rely on the
// order of `properties` to lay out forms, so plain maps are not an option.
type object struct {
	keys   []string
	values map[string]any
}

func newObject() *object {
	return &object{values: make(map[string]any)}
}

func (o *object) set(key string, value any) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *object) get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	value, ok := o.values[key]
	return value, ok
}

func (o *object) object(key string) (*object, bool) {
	value, ok := o.get(key)
	if !ok {
		return nil, false
	}
	typed, ok := value.(*object)
	return typed, ok
}

func (o *object) string(key string) string {
	value, ok := o.get(key)
	if !ok {
		return ""
	}
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return str
}

func (o *object) bool(key string) bool {
	value, ok := o.get(key)
	if !ok {
		return false
	}
	flag, ok := value.(bool)
	return ok && flag
}

func (o *object) strings(key string) []string {
	value, ok := o.get(key)
	if !ok {
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// decodeOrdered decodes JSON or YAML into *object, []any and scalar values.
func decodeOrdered(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("document is empty")
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return decodeJSON(trimmed)
	}
	return decodeYAML(trimmed)
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	value, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after document")
	}
	return value, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := newObject()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			value, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			obj.set(key, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		list := make([]any, 0)
		for dec.More() {
			value, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

// maxYAMLNodes bounds the nodes visited while expanding a YAML design,
// aliases included.
const maxYAMLNodes = 100000

func decodeYAML(raw []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	conv := &yamlConverter{expanding: make(map[*yaml.Node]bool), budget: maxYAMLNodes}
	return conv.convert(&doc)
}

// yamlConverter turns a yaml.Node tree into ordered values. Aliases are
// expanded in place; an alias that refers back into its own anchor is an
// error, as is a document that expands past the node budget.
type yamlConverter struct {
	expanding map[*yaml.Node]bool
	budget    int
}

func (c *yamlConverter) convert(node *yaml.Node) (any, error) {
	if node == nil {
		return nil, nil
	}
	if c.budget--; c.budget < 0 {
		return nil, errors.New("yaml document expands past the node limit")
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return c.convert(node.Content[0])
	case yaml.AliasNode:
		if c.expanding[node.Alias] {
			return nil, fmt.Errorf("yaml alias %q refers to itself", node.Value)
		}
		return c.convert(node.Alias)
	case yaml.MappingNode:
		c.expanding[node] = true
		defer delete(c.expanding, node)
		obj := newObject()
		for i := 0; i+1 < len(node.Content); i += 2 {
			value, err := c.convert(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.set(node.Content[i].Value, value)
		}
		return obj, nil
	case yaml.SequenceNode:
		c.expanding[node] = true
		defer delete(c.expanding, node)
		list := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := c.convert(item)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		return list, nil
	case yaml.ScalarNode:
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported yaml node kind %d", node.Kind)
	}
}
