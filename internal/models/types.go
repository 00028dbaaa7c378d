package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LanguageSet maps language codes to an enabled flag, stored as jsonb.
type LanguageSet map[string]bool

// Scan implements the sql.Scanner interface
func (l *LanguageSet) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Value implements the driver.Valuer interface
func (l LanguageSet) Value() (driver.Value, error) {
	if l == nil {
		return "{}", nil
	}
	return marshalJSON(l)
}

// Enabled returns the enabled language codes, excluding the given source
// language, in stable order for the common defaults.
func (l LanguageSet) Enabled(exclude string) []string {
	var langs []string
	// Preserve a deterministic order for the usual codes first.
	for _, code := range []string{"de", "en", "es", "fr"} {
		if code != exclude && l[code] {
			langs = append(langs, code)
		}
	}
	for code, on := range l {
		if !on || code == exclude {
			continue
		}
		known := false
		for _, c := range langs {
			if c == code {
				known = true
				break
			}
		}
		if !known {
			langs = append(langs, code)
		}
	}
	return langs
}

// StringList is a JSON-encoded list of strings.
type StringList []string

func (s *StringList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return marshalJSON(s)
}

// JSONMap is a JSON-encoded object with free-form values.
type JSONMap map[string]any

func (m *JSONMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return marshalJSON(m)
}

// Vector is a semantic embedding stored as a JSON array of floats.
type Vector []float32

func (v *Vector) Scan(value interface{}) error {
	return scanJSON(value, v)
}

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	return marshalJSON(v)
}

func scanJSON(value interface{}, dest any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
}

func marshalJSON(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
