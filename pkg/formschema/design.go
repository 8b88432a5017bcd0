package formschema

import (
	"errors"
	"fmt"
	"slices"
)

// ErrSchemaMalformed reports a design document that cannot be read as a schema
// tree. Callers treat it as recoverable: the form simply has no known fields.
var ErrSchemaMalformed = errors.New("formschema: schema malformed")

const (
	typeVoid         = "void"
	componentKey     = "x-component"
	wrapperComponent = "FormItem"
)

// Kind classifies schema nodes.
type Kind int

const (
	// KindIgnorable marks layout markers that carry neither a component nor
	// child properties. They contribute nothing to the field list.
	KindIgnorable Kind = iota
	// KindContainer groups child nodes (void layout components, nested objects).
	KindContainer
	// KindLeaf is an addressable form field.
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindLeaf:
		return "leaf"
	default:
		return "ignorable"
	}
}

// Node is one named entry of a design schema.
type Node struct {
	Name      string
	Kind      Kind
	Type      string
	Component string
	Title     string
	Required  bool
	Children  []Node
}

// Design is a parsed form design: the schema tree plus the button panel.
type Design struct {
	Schema  Node
	Buttons []Button
}

// ParseDesign reads a form design document. Both the designer envelope
// (`{"schema": {...}, "buttonPanel": {...}}`) and a bare schema object are
// accepted, in JSON or YAML.
func ParseDesign(raw []byte) (Design, error) {
	decoded, err := decodeOrdered(raw)
	if err != nil {
		return Design{}, fmt.Errorf("%w: %v", ErrSchemaMalformed, err)
	}
	top, ok := decoded.(*object)
	if !ok {
		return Design{}, fmt.Errorf("%w: document must be an object", ErrSchemaMalformed)
	}

	schemaObj := top
	if value, exists := top.get("schema"); exists {
		nested, ok := value.(*object)
		if !ok {
			return Design{}, fmt.Errorf("%w: schema must be an object", ErrSchemaMalformed)
		}
		schemaObj = nested
	}

	root := Node{Kind: KindContainer}
	if props, exists := schemaObj.get("properties"); exists {
		propsObj, ok := props.(*object)
		if !ok {
			return Design{}, fmt.Errorf("%w: properties must be an object", ErrSchemaMalformed)
		}
		root.Children = buildChildren(propsObj, schemaObj.strings("required"))
	}

	return Design{Schema: root, Buttons: parseButtons(top)}, nil
}

func buildChildren(props *object, required []string) []Node {
	children := make([]Node, 0, len(props.keys))
	for _, name := range props.keys {
		value := props.values[name]
		obj, ok := value.(*object)
		if !ok {
			// Scalars under properties are not schema nodes.
			children = append(children, Node{Name: name, Kind: KindIgnorable})
			continue
		}
		children = append(children, buildNode(name, obj, slices.Contains(required, name)))
	}
	return children
}

func buildNode(name string, obj *object, requiredByParent bool) Node {
	node := Node{
		Name:      name,
		Type:      obj.string("type"),
		Component: obj.string(componentKey),
		Title:     obj.string("title"),
		Required:  requiredByParent || obj.bool("required"),
	}
	if node.Title == "" {
		node.Title = obj.string("label")
	}

	props, hasProps := obj.object("properties")
	switch {
	case node.Type == typeVoid:
		node.Kind = KindContainer
	case node.Component != "" && node.Component != wrapperComponent:
		node.Kind = KindLeaf
		return node
	case hasProps:
		node.Kind = KindContainer
	default:
		node.Kind = KindIgnorable
		return node
	}

	if hasProps {
		node.Children = buildChildren(props, obj.strings("required"))
	}
	return node
}
