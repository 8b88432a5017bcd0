package formschema

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const maxOpenAPIDepth = 16

// FromOpenAPI builds a design from the request body of an OpenAPI 3 operation.
// Object properties become containers and scalar properties become leaves.
// Leaves take their component from an `x-component` extension, falling back
// to a widget derived from the declared type. OpenAPI property maps carry no
// order, so properties are visited alphabetically.
func FromOpenAPI(ctx context.Context, raw []byte, operationID string) (Design, error) {
	if err := ctx.Err(); err != nil {
		return Design{}, err
	}
	operationID = strings.TrimSpace(operationID)
	if operationID == "" {
		return Design{}, errors.New("formschema: operation id is required")
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return Design{}, fmt.Errorf("%w: load openapi: %v", ErrSchemaMalformed, err)
	}

	op := findOperation(doc, operationID)
	if op == nil {
		return Design{}, fmt.Errorf("formschema: operation %q not found", operationID)
	}

	body := requestBodySchema(op.RequestBody)
	if body == nil || body.Value == nil {
		return Design{Schema: Node{Kind: KindContainer}}, nil
	}

	root := Node{Kind: KindContainer}
	root.Children = openAPIChildren(body.Value, 0)
	return Design{Schema: root}, nil
}

func findOperation(doc *openapi3.T, operationID string) *openapi3.Operation {
	if doc == nil || doc.Paths == nil {
		return nil
	}
	for _, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for _, op := range item.Operations() {
			if op != nil && op.OperationID == operationID {
				return op
			}
		}
	}
	return nil
}

func requestBodySchema(body *openapi3.RequestBodyRef) *openapi3.SchemaRef {
	if body == nil || body.Value == nil {
		return nil
	}
	content := body.Value.Content
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt, ok := content[mediaType]; ok && mt != nil {
			return mt.Schema
		}
	}
	names := make([]string, 0, len(content))
	for name := range content {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if mt := content[name]; mt != nil && mt.Schema != nil {
			return mt.Schema
		}
	}
	return nil
}

func openAPIChildren(schema *openapi3.Schema, depth int) []Node {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	children := make([]Node, 0, len(names))
	for _, name := range names {
		children = append(children, openAPINode(name, schema.Properties[name], slices.Contains(schema.Required, name), depth+1))
	}
	return children
}

func openAPINode(name string, ref *openapi3.SchemaRef, required bool, depth int) Node {
	node := Node{Name: name, Required: required}
	if ref == nil || ref.Value == nil || depth > maxOpenAPIDepth {
		return node
	}
	schema := ref.Value
	node.Title = schema.Title
	node.Component, _ = schema.Extensions[componentKey].(string)

	schemaType := firstOpenAPIType(schema.Type)
	if schemaType == "object" || len(schema.Properties) > 0 {
		if node.Component == "" || node.Component == wrapperComponent {
			node.Kind = KindContainer
			node.Children = openAPIChildren(schema, depth)
			return node
		}
	}

	node.Type = openAPIFieldType(schemaType, schema.Format)
	if node.Component == "" {
		node.Component = defaultComponent(node.Type)
	}
	if node.Component == "" {
		return node
	}
	node.Kind = KindLeaf
	return node
}

func firstOpenAPIType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	values := types.Slice()
	for _, value := range values {
		if value != "null" {
			return value
		}
	}
	return ""
}

func openAPIFieldType(schemaType, format string) string {
	switch schemaType {
	case "string":
		switch format {
		case "date":
			return string(FieldTypeDate)
		case "date-time":
			return string(FieldTypeDatetime)
		}
		return string(FieldTypeString)
	case "integer", "number":
		return string(FieldTypeNumber)
	case "boolean":
		return string(FieldTypeBoolean)
	default:
		return schemaType
	}
}

func defaultComponent(fieldType string) string {
	switch FieldType(fieldType) {
	case FieldTypeString:
		return "Input"
	case FieldTypeNumber:
		return "NumberPicker"
	case FieldTypeBoolean:
		return "Switch"
	case FieldTypeDate, FieldTypeDatetime:
		return "DatePicker"
	}
	// Arrays and untyped schemas need an explicit x-component.
	return ""
}
