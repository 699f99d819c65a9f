package sanitizer

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// maxInt64Digits is the digit count of math.MaxInt64.
const maxInt64Digits = 19

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// ToInt coerces an extracted scalar to an integer, using 0 when it cannot.
func ToInt(value any) int64 {
	return ToIntOr(value, 0)
}

// ToIntOr coerces an extracted scalar to an integer, using def when it cannot.
//
// Floats and numeric strings are rounded half to even. Strings accept the Brazilian
// layout: with both separators present "." groups thousands and "," is the decimal
// point ("3.500,00" is 3500), and a lone "," is a decimal point ("17500,0" is 17500).
func ToIntOr(value any, def int64) int64 {
	switch v := value.(type) {
	case nil:
		return def
	case bool:
		if v {
			return 1
		}
		return 0
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		if uint64(v) > math.MaxInt64 {
			return def
		}
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return def
		}
		return int64(v)
	case float32:
		return floatToInt(float64(v), def)
	case float64:
		return floatToInt(v, def)
	case json.Number:
		return stringToInt(v.String(), def)
	case string:
		return stringToInt(v, def)
	default:
		return def
	}
}

func floatToInt(f float64, def int64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	r := math.RoundToEven(f)
	if r < math.MinInt64 || r >= math.MaxInt64 {
		return def
	}
	return int64(r)
}

func stringToInt(s string, def int64) int64 {
	raw := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if raw == "" {
		return def
	}

	raw = normalizeDecimalSeparators(raw)

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return def
	}
	if d.IsZero() {
		return 0
	}

	// RoundBank rescales through 10^|exponent|; reject by digit count first.
	magnitude := int64(d.Exponent()) + int64(len(new(big.Int).Abs(d.Coefficient()).String()))
	if magnitude > maxInt64Digits {
		return def
	}
	if magnitude < 0 {
		return 0
	}

	d = d.RoundBank(0)
	if d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		return def
	}
	return d.IntPart()
}

func normalizeDecimalSeparators(raw string) string {
	hasComma := strings.Contains(raw, ",")
	if !hasComma {
		return raw
	}
	if strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ".", "")
	}
	return strings.ReplaceAll(raw, ",", ".")
}
