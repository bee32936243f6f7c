package dbtypes

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LineItem is one free-form entry of a registration's ticket array. Keys are
// kept exactly as stored so rewrites never drop owner linkage or unknown fields.
type LineItem map[string]any

// Clone returns a shallow copy of the item.
func (l LineItem) Clone() LineItem {
	out := make(LineItem, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// LineItems is the ordered ticket array stored in registrations.line_items.
type LineItems []LineItem

func (l *LineItems) Scan(src any) error {
	if src == nil {
		*l = LineItems{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return l.decode([]byte(v))
	case []byte:
		return l.decode(v)
	default:
		return fmt.Errorf("LineItems: unsupported Scan type %T", src)
	}
}

func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("LineItems: marshal: %w", err)
	}
	return string(raw), nil
}

func (l *LineItems) decode(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = LineItems{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var out []LineItem
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("LineItems: decode: %w", err)
	}
	if out == nil {
		out = []LineItem{}
	}
	*l = LineItems(out)
	return nil
}

// UnmarshalJSON leaves the slice nil for a JSON null so callers can tell a
// missing array from an empty one.
func (l *LineItems) UnmarshalJSON(raw []byte) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		*l = nil
		return nil
	}
	return l.decode(raw)
}
