// Package formschema reads form design documents and flattens their schema
// tree into the addressable field list used by field settings and task
// scripts. Designs arrive as JSON or YAML (property order is preserved so the
// field list follows the designer's layout) or are derived from an OpenAPI
// request body. Schema nodes are classified into a closed set of kinds:
// containers (layout wrappers and nested objects), leaves (anything carrying
// a concrete `x-component` other than the `FormItem` decorator) and ignorable
// markers. Script authors address fields by the normalized key, the last
// human-nameable segment of the structural path.
package formschema
