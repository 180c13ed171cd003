// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Type coercion for filter evaluation.
 *
 * Numeric coercion is strict: Go number kinds, json.Number, and numeric
 * strings convert to float64; booleans, nil, and everything else fail with
 * ErrCoercionFailed. Callers treat the failure as "leaf does not match" so
 * malformed data never aborts a batch.
 *
 * Text coercion is lenient and total: every value renders to a string. It
 * is used for the affix operators' comparison values, which may come out of
 * configuration as numbers (e.g. prefix 13 for "138kV").
 */

// CoerceNumeric converts value to float64 for numeric comparison.
// Whitespace-only strings and booleans return ErrCoercionFailed.
func CoerceNumeric(value any) (float64, error) {
	if f, ok := toFloat64(value); ok {
		return f, nil
	}
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, types.ErrCoercionFailed
		}
		return f, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, types.ErrCoercionFailed
		}
		return f, nil
	default:
		return 0, types.ErrCoercionFailed
	}
}

// CoerceText converts any value to its string representation.
func CoerceText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toFloat64 converts native Go numbers to float64. Strings are not numbers here.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
