package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a JSON-encoded text column holding a list of strings
// (product tags, image URLs). NULL, empty and unparsable values decode
// to an empty list.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("encode string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	*l = StringList{}
	raw, ok := rawColumn(src)
	if !ok {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	if out != nil {
		*l = out
	}
	return nil
}

// Nutrition is a JSON-encoded text column of nutrition facts keyed by
// name ("protein" -> "26g"). NULL, empty and unparsable values decode to
// an empty map.
type Nutrition map[string]string

// Value implements driver.Valuer.
func (n Nutrition) Value() (driver.Value, error) {
	if n == nil {
		n = Nutrition{}
	}
	b, err := json.Marshal(map[string]string(n))
	if err != nil {
		return nil, fmt.Errorf("encode nutrition: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (n *Nutrition) Scan(src any) error {
	*n = Nutrition{}
	raw, ok := rawColumn(src)
	if !ok {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	if out != nil {
		*n = out
	}
	return nil
}

func rawColumn(src any) ([]byte, bool) {
	switch v := src.(type) {
	case []byte:
		return v, len(v) > 0
	case string:
		return []byte(v), v != ""
	default:
		return nil, false
	}
}
