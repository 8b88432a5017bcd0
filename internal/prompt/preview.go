package prompt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formscript/pkg/fieldsettings"
	"github.com/goliatone/go-formscript/pkg/formschema"
	"github.com/goliatone/go-formscript/pkg/session"
)

const doneOption = "Done"

// Preview fires the load trigger with values, then lets the user edit
// visible, writable fields one at a time until they pick Done. Each edit fires
// the change trigger and the outcome is reported through the driver.
func Preview(ctx context.Context, driver Driver, sess *session.Session, values map[string]any) error {
	if err := report(ctx, driver, sess, sess.Load(ctx, values)); err != nil {
		return err
	}

	for {
		fields := editable(sess)
		options := make([]string, 0, len(fields)+1)
		for _, field := range fields {
			options = append(options, optionLabel(field, sess.Values()[field.Key]))
		}
		options = append(options, doneOption)

		idx, err := driver.Select(ctx, SelectConfig{
			Message:  "Field to change",
			Options:  options,
			PageSize: 12,
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(fields) {
			return nil
		}

		field := fields[idx]
		value, err := ask(ctx, driver, field, sess.Values()[field.Key])
		if err != nil {
			return err
		}
		if err := report(ctx, driver, sess, sess.Change(ctx, field.Key, value)); err != nil {
			return err
		}
	}
}

func editable(sess *session.Session) []formschema.FormField {
	settings := sess.Settings()
	var out []formschema.FormField
	for _, field := range sess.Fields() {
		setting := settings[field.Key]
		if setting.Visible && !setting.Readonly {
			out = append(out, field)
		}
	}
	return out
}

func optionLabel(field formschema.FormField, value any) string {
	label := field.Label
	if label == "" {
		label = field.ScriptKey()
	}
	if value == nil {
		return fmt.Sprintf("%s (%s)", label, field.ScriptKey())
	}
	return fmt.Sprintf("%s (%s) = %v", label, field.ScriptKey(), value)
}

func ask(ctx context.Context, driver Driver, field formschema.FormField, current any) (any, error) {
	message := fmt.Sprintf("%s:", field.ScriptKey())
	switch field.Type {
	case formschema.FieldTypeBoolean:
		def, _ := current.(bool)
		return driver.Confirm(ctx, ConfirmConfig{Message: message, Default: def})
	case formschema.FieldTypeNumber:
		raw, err := driver.Input(ctx, InputConfig{
			Message:   message,
			Default:   defaultText(current),
			Validator: validNumber,
		})
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case formschema.FieldTypeDate:
		return driver.Input(ctx, InputConfig{
			Message:   message,
			Default:   defaultText(current),
			Help:      "YYYY-MM-DD",
			Validator: validLayout(time.DateOnly),
		})
	case formschema.FieldTypeDatetime:
		return driver.Input(ctx, InputConfig{
			Message:   message,
			Default:   defaultText(current),
			Help:      "RFC 3339",
			Validator: validLayout(time.RFC3339),
		})
	default:
		return driver.Input(ctx, InputConfig{Message: message, Default: defaultText(current)})
	}
}

func defaultText(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func validNumber(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
		return errors.New("enter a number")
	}
	return nil
}

func validLayout(layout string) func(string) error {
	return func(raw string) error {
		if strings.TrimSpace(raw) == "" {
			return nil
		}
		if _, err := time.Parse(layout, strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("expected %s", layout)
		}
		return nil
	}
}

func report(ctx context.Context, driver Driver, sess *session.Session, out session.Outcome) error {
	var lines []string
	switch {
	case out.Err != nil:
		lines = append(lines, fmt.Sprintf("script failed (%s): %v", out.RunID, out.Err))
	case out.Ran:
		lines = append(lines, fmt.Sprintf("script ran on %s in %s", out.Trigger, out.Duration.Round(time.Microsecond)))
	default:
		lines = append(lines, fmt.Sprintf("script not run on %s", out.Trigger))
	}

	keys := make([]string, 0, len(out.Changes))
	for key := range out.Changes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("  %s <- %v", key, out.Changes[key]))
	}

	for _, field := range sess.Fields() {
		lines = append(lines, "  "+settingLine(field, out.Settings[field.Key]))
	}
	return driver.Info(ctx, strings.Join(lines, "\n"))
}

func settingLine(field formschema.FormField, setting fieldsettings.FieldSetting) string {
	var flags []string
	if !setting.Visible {
		flags = append(flags, "hidden")
	}
	if setting.Readonly {
		flags = append(flags, "readonly")
	}
	if setting.Required {
		flags = append(flags, "required")
	}
	if len(flags) == 0 {
		return field.ScriptKey()
	}
	return fmt.Sprintf("%s [%s]", field.ScriptKey(), strings.Join(flags, ", "))
}
