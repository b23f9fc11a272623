package utils

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// DecimalFromAny converts a raw document value to a decimal.
// Accepted: Go numeric types, json.Number, and strings such as "20,000" or "$12.50".
// ok is false for anything else, including NaN, infinities and amounts with words attached.
func DecimalFromAny(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, false
		}
		return *n, true
	case float64:
		return decimalFromFloat(n)
	case float32:
		return decimalFromFloat(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return decimal.NewFromInt(int64(n)), true
	case uint32:
		return decimal.NewFromInt(int64(n)), true
	case uint64:
		return decimal.NewFromInt(int64(n)), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		return decimalFromString(n)
	default:
		return decimal.Zero, false
	}
}

// FloatFromAny is DecimalFromAny for non-monetary values like item quantities.
func FloatFromAny(v any) (float64, bool) {
	d, ok := DecimalFromAny(v)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func decimalFromFloat(f float64) (decimal.Decimal, bool) {
	if f != f || f > 1e300 || f < -1e300 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func decimalFromString(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	// Currency symbols around the amount: "$12.50", "12.50 €". Words are not stripped.
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.Is(unicode.Sc, r)
	})
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
