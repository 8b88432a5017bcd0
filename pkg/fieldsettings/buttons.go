package fieldsettings

import (
	"sort"

	"github.com/goliatone/go-formscript/pkg/formschema"
)

// ButtonSetting is the saved state of one design button.
type ButtonSetting struct {
	Visible bool `json:"visible" yaml:"visible"`
}

// ButtonStore tracks visibility per button id.
type ButtonStore struct {
	buttons  []formschema.Button
	settings map[string]ButtonSetting
}

// InitializeButtons mirrors Initialize for buttons: restored entries win,
// missing ones default to visible and stale ones are dropped.
func InitializeButtons(buttons []formschema.Button, restored map[string]ButtonSetting) (*ButtonStore, []string) {
	store := &ButtonStore{
		buttons:  make([]formschema.Button, 0, len(buttons)),
		settings: make(map[string]ButtonSetting, len(buttons)),
	}
	for _, button := range buttons {
		if _, exists := store.settings[button.ID]; exists {
			continue
		}
		setting, ok := restored[button.ID]
		if !ok {
			setting = ButtonSetting{Visible: true}
		}
		store.buttons = append(store.buttons, button)
		store.settings[button.ID] = setting
	}

	var dropped []string
	for id := range restored {
		if _, ok := store.settings[id]; !ok {
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)
	return store, dropped
}

// SetVisible updates a button. Unknown ids are ignored.
func (s *ButtonStore) SetVisible(id string, visible bool) bool {
	if s == nil {
		return false
	}
	if _, ok := s.settings[id]; !ok {
		return false
	}
	s.settings[id] = ButtonSetting{Visible: visible}
	return true
}

// Get returns the setting for id.
func (s *ButtonStore) Get(id string) (ButtonSetting, bool) {
	if s == nil {
		return ButtonSetting{}, false
	}
	setting, ok := s.settings[id]
	return setting, ok
}

// Len returns the number of tracked buttons.
func (s *ButtonStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.settings)
}

// Snapshot returns a copy of every setting.
func (s *ButtonStore) Snapshot() map[string]ButtonSetting {
	out := make(map[string]ButtonSetting, s.Len())
	if s == nil {
		return out
	}
	for id, setting := range s.settings {
		out[id] = setting
	}
	return out
}

// Buttons returns every tracked button in design order.
func (s *ButtonStore) Buttons() []formschema.Button {
	if s == nil {
		return nil
	}
	return append([]formschema.Button(nil), s.buttons...)
}

// VisibleButtons returns the visible buttons in design order.
func (s *ButtonStore) VisibleButtons() []formschema.Button {
	if s == nil {
		return nil
	}
	out := make([]formschema.Button, 0, len(s.buttons))
	for _, button := range s.buttons {
		if s.settings[button.ID].Visible {
			out = append(out, button)
		}
	}
	return out
}

// VisibleCount counts visible buttons.
func (s *ButtonStore) VisibleCount() int {
	return len(s.VisibleButtons())
}
