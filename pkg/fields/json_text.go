package fields

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// JSONText is a JSON document stored in a text column.
type JSONText []byte

// NewJSONText marshals v into JSONText.
func NewJSONText(v interface{}) (JSONText, error) {
	if raw, ok := v.(string); ok && gjson.Valid(raw) {
		return JSONText(raw), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value to JSON: %w", err)
	}
	return JSONText(b), nil
}

// Scan implements sql.Scanner.
func (j *JSONText) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case string:
		*j = JSONText(v)
	case []byte:
		*j = append((*j)[:0], v...)
	default:
		return fmt.Errorf("cannot scan %T into JSONText", value)
	}
	return nil
}

// Value implements driver.Valuer.
func (j JSONText) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(j) {
		return nil, fmt.Errorf("invalid JSON text")
	}
	return string(j), nil
}

// MarshalJSON implements json.Marshaler.
func (j JSONText) MarshalJSON() ([]byte, error) {
	if len(j) == 0 || !gjson.ValidBytes(j) {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONText) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[:0], b...)
	return nil
}

// Decode parses stored JSON text into a generic value. Invalid text decodes
// to nil.
func Decode(value interface{}) interface{} {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case JSONText:
		raw = v
	default:
		return v
	}
	if !gjson.ValidBytes(raw) {
		return nil
	}
	return gjson.ParseBytes(raw).Value()
}
