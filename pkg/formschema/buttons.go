package formschema

import (
	"fmt"
	"strings"
)

const (
	defaultButtonLabel = "Button"
	defaultButtonType  = "default"
	defaultButtonColor = "primary"
)

// Button is an action button declared in the design's button panel.
type Button struct {
	ID     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Action string `json:"action,omitempty" yaml:"action,omitempty"`
	Type   string `json:"type" yaml:"type"`
	Icon   string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color  string `json:"color" yaml:"color"`
}

// ExtractButtons parses a design document and returns its buttons. Malformed
// documents yield no buttons.
func ExtractButtons(raw []byte) []Button {
	design, err := ParseDesign(raw)
	if err != nil {
		return nil
	}
	return design.Buttons
}

func parseButtons(top *object) []Button {
	panel, ok := top.object("buttonPanel")
	if !ok {
		return nil
	}
	value, ok := panel.get("buttons")
	if !ok {
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil
	}

	buttons := make([]Button, 0, len(list))
	for _, item := range list {
		entry, ok := item.(*object)
		if !ok {
			continue
		}
		id := buttonID(entry)
		if id == "" {
			continue
		}
		label := firstNonEmpty(entry.string("label"), entry.string("name"), defaultButtonLabel)
		buttons = append(buttons, Button{
			ID:     id,
			Label:  SanitizeLabel(label),
			Action: strings.TrimSpace(entry.string("action")),
			Type:   firstNonEmpty(entry.string("type"), defaultButtonType),
			Icon:   strings.TrimSpace(entry.string("icon")),
			Color:  firstNonEmpty(entry.string("color"), defaultButtonColor),
		})
	}
	return buttons
}

func buttonID(entry *object) string {
	value, ok := entry.get("id")
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return fmt.Sprintf("%g", typed)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
