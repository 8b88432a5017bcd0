package script

import (
	"fmt"
	"strings"
)

// EventMode selects which triggers run the script.
type EventMode string

const (
	EventOnLoad   EventMode = "onLoad"
	EventOnChange EventMode = "onChange"
	EventBoth     EventMode = "both"
)

// DefaultEventMode is used when a task was saved without a mode.
const DefaultEventMode = EventOnLoad

// ParseEventMode accepts the saved spelling of a mode, case-insensitively.
// The empty string maps to DefaultEventMode.
func ParseEventMode(raw string) (EventMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return DefaultEventMode, nil
	case "onload", "load":
		return EventOnLoad, nil
	case "onchange", "change":
		return EventOnChange, nil
	case "both":
		return EventBoth, nil
	default:
		return "", fmt.Errorf("script: unknown event mode %q", raw)
	}
}

// Valid reports whether m is one of the known modes.
func (m EventMode) Valid() bool {
	switch m {
	case EventOnLoad, EventOnChange, EventBoth:
		return true
	default:
		return false
	}
}

// Fires reports whether trigger t runs under mode m.
func (m EventMode) Fires(t Trigger) bool {
	switch t {
	case TriggerLoad:
		return m == EventOnLoad || m == EventBoth
	case TriggerChange:
		return m == EventOnChange || m == EventBoth
	default:
		return false
	}
}

// Trigger is the event that started a run.
type Trigger int

const (
	TriggerLoad Trigger = iota + 1
	TriggerChange
)

func (t Trigger) String() string {
	switch t {
	case TriggerLoad:
		return "load"
	case TriggerChange:
		return "change"
	default:
		return "unknown"
	}
}

// ParseTrigger reads the textual form used by the preview API and CLI.
func ParseTrigger(raw string) (Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "load", "onload":
		return TriggerLoad, nil
	case "change", "onchange":
		return TriggerChange, nil
	default:
		return 0, fmt.Errorf("script: unknown trigger %q", raw)
	}
}

// Config is the persisted script of a form-task. FieldScript is opaque text;
// it is only compiled when a trigger runs it.
type Config struct {
	FieldScript     string    `json:"fieldScript" yaml:"fieldScript"`
	ScriptEventType EventMode `json:"scriptEventType" yaml:"scriptEventType"`
}

// Empty reports whether there is no script to run.
func (c Config) Empty() bool {
	return strings.TrimSpace(c.FieldScript) == ""
}
