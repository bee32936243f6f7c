package pipeline

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

// Change records one rewrite applied by Canonicalize.
type Change struct {
	Field string `json:"field"`
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
}

// Canonicalize rewrites a line item onto the canonical key spellings.
// Variant keys are removed only when they repeat the chosen value or are
// empty; conflicting variants and unrecognized keys stay in place. The input
// is not modified.
func Canonicalize(raw dbtypes.LineItem) (dbtypes.LineItem, []Change) {
	out := raw.Clone()
	var changes []Change

	changes = append(changes, canonicalKey(out, TicketTypeKeys, func(v any) (any, bool) {
		s, ok := asString(v)
		return s, ok
	})...)
	changes = append(changes, canonicalKey(out, PackageKeys, func(v any) (any, bool) {
		s, ok := asString(v)
		return s, ok
	})...)
	changes = append(changes, canonicalKey(out, PackageFlagKeys, func(v any) (any, bool) {
		return asBool(v), true
	})...)
	changes = append(changes, canonicalKey(out, QuantityKeys, func(v any) (any, bool) {
		n, ok := asInt(v)
		if !ok || n <= 0 {
			return nil, false
		}
		return n, true
	})...)
	changes = append(changes, canonicalKey(out, PriceKeys, func(v any) (any, bool) {
		d, ok := asDecimal(v)
		if !ok || d.IsNegative() {
			return nil, false
		}
		return json.Number(d.String()), true
	})...)

	if _, _, ok := QuantityKeys.Lookup(out); !ok {
		out[QuantityKeys.Canonical()] = 1
		changes = append(changes, Change{Field: QuantityKeys.Field, To: "1"})
	}
	changes = append(changes, canonicalStatus(out)...)
	return out, changes
}

// canonicalKey moves the winning spelling of a field to the canonical key,
// decoding it with parse. Undecodable values are left untouched.
func canonicalKey(item dbtypes.LineItem, keys KeySet, parse func(any) (any, bool)) []Change {
	key, value, ok := keys.Lookup(item)
	if !ok {
		return nil
	}
	parsed, ok := parse(value)
	if !ok {
		return nil
	}

	var changes []Change
	canonical := keys.Canonical()
	before := display(value)
	if key != canonical || !sameValue(value, parsed) {
		item[canonical] = parsed
		changes = append(changes, Change{Field: keys.Field, From: key + "=" + before, To: canonical + "=" + display(parsed)})
	}
	for _, variant := range keys.Keys[1:] {
		existing, present := item[variant]
		if !present {
			continue
		}
		if isEmpty(existing) {
			delete(item, variant)
			continue
		}
		if other, ok := parse(existing); ok && display(other) == display(parsed) {
			delete(item, variant)
		}
	}
	return changes
}

func canonicalStatus(item dbtypes.LineItem) []Change {
	canonical := StatusKeys.Canonical()
	key, status, ok := StatusKeys.LookupString(item)
	if !ok {
		item[canonical] = string(enums.BucketSold)
		return []Change{{Field: StatusKeys.Field, To: string(enums.BucketSold)}}
	}
	bucket, recognized := LookupStatus(status)
	if !recognized {
		return nil
	}

	var changes []Change
	if key != canonical || item[canonical] != string(bucket) {
		changes = append(changes, Change{Field: StatusKeys.Field, From: key + "=" + status, To: string(bucket)})
		item[canonical] = string(bucket)
	}
	for _, variant := range StatusKeys.Keys[1:] {
		existing, present := item[variant]
		if !present {
			continue
		}
		if s, ok := asString(existing); !ok || s == status {
			delete(item, variant)
		}
	}
	return changes
}

func display(value any) string {
	if b, ok := value.(bool); ok {
		if b {
			return "true"
		}
		return "false"
	}
	if s, ok := asString(value); ok {
		return s
	}
	return ""
}

// sameValue reports whether the stored value already has the decoded shape.
func sameValue(stored, parsed any) bool {
	switch p := parsed.(type) {
	case string:
		s, ok := stored.(string)
		return ok && s == p
	case bool:
		b, ok := stored.(bool)
		return ok && b == p
	case int:
		switch s := stored.(type) {
		case json.Number:
			return s.String() == display(p)
		case float64:
			return s == float64(p)
		case int:
			return s == p
		}
		return false
	case json.Number:
		n, ok := stored.(json.Number)
		if !ok {
			return false
		}
		a, errA := decimal.NewFromString(n.String())
		b, errB := decimal.NewFromString(p.String())
		return errA == nil && errB == nil && a.Equal(b)
	}
	return false
}
