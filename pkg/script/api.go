// Package script runs per-task field scripts. A script is plain JavaScript
// that may only reach form state through the field-control functions bound by
// the executor:
//
//	getFieldValue(key)            current value, undefined when unknown
//	setFieldValue(key, value)     write a value, visible to later reads
//	setFieldVisible(key, bool)    show or hide a field
//	setFieldReadonly(key, bool)   lock or unlock a field
//	formValues                    frozen snapshot of values at run start
//
// Keys are normalized keys (the last segment of the structural path) with the
// raw structural key accepted as a fallback. Unknown keys never fail: reads
// are undefined and writes are dropped.
package script

// Names exposed to script text. Saved scripts depend on them verbatim.
const (
	FuncGetFieldValue    = "getFieldValue"
	FuncSetFieldValue    = "setFieldValue"
	FuncSetFieldVisible  = "setFieldVisible"
	FuncSetFieldReadonly = "setFieldReadonly"
	GlobalFormValues     = "formValues"
	GlobalConsole        = "console"
)

// FieldControl is the surface a script executes against. The bool results
// report whether the key addressed a known field; scripts never see them.
type FieldControl interface {
	GetFieldValue(key string) (any, bool)
	SetFieldValue(key string, value any) bool
	SetFieldVisible(key string, visible bool) bool
	SetFieldReadonly(key string, readonly bool) bool
	FormValues() map[string]any
}
