package pipeline

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// extendedWrappers are the Mongo extended-JSON envelopes found in migrated documents.
var extendedWrappers = []string{"$numberDecimal", "$numberInt", "$numberLong", "$numberDouble", "$oid"}

// Unwrap strips a single extended-JSON envelope, returning the inner value.
func Unwrap(value any) (any, bool) {
	wrapped, ok := value.(map[string]any)
	if !ok || len(wrapped) != 1 {
		return value, false
	}
	for _, key := range extendedWrappers {
		if inner, ok := wrapped[key]; ok {
			return inner, true
		}
	}
	return value, false
}

func asString(value any) (string, bool) {
	value, _ = Unwrap(value)
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

// asInt accepts whole numbers only; 2.0 is fine, 2.5 is not.
func asInt(value any) (int, bool) {
	value, _ = Unwrap(value)
	var f float64
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, false
		}
		return int(v), true
	case float64:
		f = v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return asInt(n)
		}
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func asDecimal(value any) (decimal.Decimal, bool) {
	value, _ = Unwrap(value)
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func asBool(value any) bool {
	value, _ = Unwrap(value)
	switch v := value.(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "true" || s == "1"
	case json.Number:
		return v.String() == "1"
	case float64:
		return v == 1
	case int:
		return v == 1
	case int64:
		return v == 1
	default:
		return false
	}
}
