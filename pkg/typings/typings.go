// Package typings produces authoring aids for field scripts: TypeScript
// declarations for the editor, generated quick-action scripts and the
// built-in snippet library.
package typings

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formscript/pkg/formschema"
	"github.com/goliatone/go-formscript/pkg/script"
)

//go:embed templates
var templateFS embed.FS

// ErrUnknownAction reports a quick action name that is not recognised.
var ErrUnknownAction = errors.New("typings: unknown quick action")

type generator struct {
	declarations *pongo2.Template
	generic      *pongo2.Template
	quick        *pongo2.Template
}

var loadGenerator = sync.OnceValues(func() (*generator, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("typings: templates: %w", err)
	}
	set := pongo2.NewSet("typings", pongo2.NewFSLoader(sub))

	g := &generator{}
	for name, target := range map[string]**pongo2.Template{
		"declarations.tpl": &g.declarations,
		"generic.tpl":      &g.generic,
		"quick.tpl":        &g.quick,
	} {
		tmpl, err := set.FromFile(name)
		if err != nil {
			return nil, fmt.Errorf("typings: load template %q: %w", name, err)
		}
		*target = tmpl
	}
	return g, nil
})

type declaredField struct {
	Key    string
	Label  string
	Type   string
	TSType string
}

// Declarations renders the editor declarations for fields. Keys are the
// script keys; duplicates keep the first field. Without fields the generic
// declarations are returned.
func Declarations(fields []formschema.FormField) (string, error) {
	g, err := loadGenerator()
	if err != nil {
		return "", err
	}

	declared := make([]declaredField, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		key := field.ScriptKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		label := field.Label
		if label == "" {
			label = key
		}
		declared = append(declared, declaredField{
			Key:    jsString(key),
			Label:  commentText(label),
			Type:   commentText(string(field.Type)),
			TSType: tsType(field.Type),
		})
	}

	if len(declared) == 0 {
		out, err := g.generic.Execute(pongo2.Context{})
		if err != nil {
			return "", fmt.Errorf("typings: render generic declarations: %w", err)
		}
		return out, nil
	}
	out, err := g.declarations.Execute(pongo2.Context{"fields": declared})
	if err != nil {
		return "", fmt.Errorf("typings: render declarations: %w", err)
	}
	return out, nil
}

func tsType(t formschema.FieldType) string {
	switch t {
	case formschema.FieldTypeString, formschema.FieldTypeDate, formschema.FieldTypeDatetime:
		return "string"
	case formschema.FieldTypeNumber:
		return "number"
	case formschema.FieldTypeBoolean:
		return "boolean"
	default:
		return "any"
	}
}

// jsString escapes text for a double quoted literal.
func jsString(text string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`).Replace(text)
}

// commentText keeps text from closing the surrounding block comment.
func commentText(text string) string {
	return strings.NewReplacer("*/", `*\/`, "\n", " ", "\r", " ").Replace(text)
}

// Quick action names.
const (
	ActionHideAll     = "hide-all"
	ActionShowAll     = "show-all"
	ActionReadonlyAll = "readonly-all"
	ActionEnableAll   = "enable-all"
	ActionDebug       = "debug"
)

// QuickActions lists the quick action names.
func QuickActions() []string {
	return []string{ActionHideAll, ActionShowAll, ActionReadonlyAll, ActionEnableAll, ActionDebug}
}

// QuickAction generates a script that applies action to every field.
func QuickAction(action string, fields []formschema.FormField) (string, error) {
	g, err := loadGenerator()
	if err != nil {
		return "", err
	}

	data := pongo2.Context{"action": action}
	switch action {
	case ActionHideAll:
		data["call"], data["flag"] = script.FuncSetFieldVisible, "false"
	case ActionShowAll:
		data["call"], data["flag"] = script.FuncSetFieldVisible, "true"
	case ActionReadonlyAll:
		data["call"], data["flag"] = script.FuncSetFieldReadonly, "true"
	case ActionEnableAll:
		data["call"], data["flag"] = script.FuncSetFieldReadonly, "false"
	case ActionDebug, "debug-template":
		data["action"] = ActionDebug
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	keys := make([]string, 0, len(fields))
	for _, field := range fields {
		keys = append(keys, jsString(field.ScriptKey()))
	}
	data["keys"] = keys

	out, err := g.quick.Execute(data)
	if err != nil {
		return "", fmt.Errorf("typings: render quick action %q: %w", action, err)
	}
	return out, nil
}

// Snippet returns the built-in script template called name.
func Snippet(name string) (string, bool) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	data, err := templateFS.ReadFile(path.Join("templates", "snippets", name+".js"))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Snippets lists the built-in snippet names in alphabetical order.
func Snippets() []string {
	entries, err := templateFS.ReadDir("templates/snippets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), ".js"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
