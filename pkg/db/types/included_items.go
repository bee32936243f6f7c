package dbtypes

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IncludedItem is one constituent of a package definition.
type IncludedItem struct {
	TicketTypeID string `json:"ticketTypeId"`
	// Quantity is zero when the stored value is missing or not a whole number.
	Quantity int `json:"quantity"`
}

// UnmarshalJSON tolerates the older eventTicketId key and quoted quantities.
func (i *IncludedItem) UnmarshalJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("IncludedItem: decode: %w", err)
	}

	*i = IncludedItem{}
	for _, key := range []string{"ticketTypeId", "eventTicketId", "ticket_type_id"} {
		if v, ok := fields[key].(string); ok && strings.TrimSpace(v) != "" {
			i.TicketTypeID = strings.TrimSpace(v)
			break
		}
	}
	for _, key := range []string{"quantity", "qty"} {
		if v, ok := fields[key]; ok {
			i.Quantity = wholeNumber(v)
			break
		}
	}
	return nil
}

func wholeNumber(v any) int {
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case string:
		s = strings.TrimSpace(val)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

// IncludedItems is the ordered constituent list stored in packages.included_items.
type IncludedItems []IncludedItem

func (l *IncludedItems) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = IncludedItems{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("IncludedItems: unsupported Scan type %T", src)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = IncludedItems{}
		return nil
	}
	var out []IncludedItem
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return fmt.Errorf("IncludedItems: decode: %w", err)
	}
	*l = IncludedItems(out)
	return nil
}

func (l IncludedItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("IncludedItems: marshal: %w", err)
	}
	return string(raw), nil
}
