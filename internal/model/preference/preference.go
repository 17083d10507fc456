package preference

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPreferences is returned when a submitted record is not a flat
// object of option lists and free-text fields.
var ErrInvalidPreferences = errors.New("invalid preferences")

// Preferences is one partner's submission: selected option labels keyed by
// category plus free-text fields. Labels are not checked against any vocabulary.
type Preferences struct {
	Selections map[string][]string
	Notes      map[string]string
}

// New returns an empty record.
func New() Preferences {
	return Preferences{
		Selections: make(map[string][]string),
		Notes:      make(map[string]string),
	}
}

// Parse decodes a JSON object into a record.
func Parse(data []byte) (Preferences, error) {
	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// Selected returns the labels chosen for category.
func (p Preferences) Selected(category string) []string {
	return p.Selections[category]
}

// Has reports whether label was selected for category, ignoring case.
func (p Preferences) Has(category, label string) bool {
	for _, item := range p.Selected(category) {
		if strings.EqualFold(strings.TrimSpace(item), label) {
			return true
		}
	}
	return false
}

// Empty reports whether nothing was selected or written.
func (p Preferences) Empty() bool {
	return len(p.Selections) == 0 && len(p.Notes) == 0
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	out := New()
	for category, labels := range p.Selections {
		copied := make([]string, len(labels))
		copy(copied, labels)
		out.Selections[category] = copied
	}
	for field, text := range p.Notes {
		out.Notes[field] = text
	}
	return out
}

// MarshalJSON writes the record back as the flat object clients submit.
func (p Preferences) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(p.Selections)+len(p.Notes))
	for field, text := range p.Notes {
		flat[field] = text
	}
	for category, labels := range p.Selections {
		if labels == nil {
			labels = []string{}
		}
		flat[category] = labels
	}
	return json.Marshal(flat)
}

// UnmarshalJSON accepts arrays of strings as selections and strings as notes;
// null values are dropped.
func (p *Preferences) UnmarshalJSON(data []byte) error {
	*p = New()

	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidPreferences)
	}

	for key, value := range raw {
		value = bytes.TrimSpace(value)
		if len(value) == 0 || bytes.Equal(value, []byte("null")) {
			continue
		}

		switch value[0] {
		case '[':
			var labels []string
			if err := json.Unmarshal(value, &labels); err != nil {
				return fmt.Errorf("%w: %q must be a list of strings", ErrInvalidPreferences, key)
			}
			p.Selections[key] = labels
		case '"':
			var text string
			if err := json.Unmarshal(value, &text); err != nil {
				return fmt.Errorf("%w: %q must be a string", ErrInvalidPreferences, key)
			}
			p.Notes[key] = text
		default:
			return fmt.Errorf("%w: %q must be a list of strings or a string", ErrInvalidPreferences, key)
		}
	}
	return nil
}
