// internal/rules/operators.go
package rules

import (
	"fmt"
	"reflect"
	"strings"
)

/*
 * Filter operator semantics.
 *
 * Implements the 11 leaf operators. Unary-comparable operators (eq, neq,
 * geq, leq, gt, lt) read only the first value; set-style operators (in,
 * not_in, startswith, not_startswith, endswith) consult every value.
 *
 *   - eq/neq: equality with numeric tolerance across Go number kinds
 *   - geq/leq/gt/lt: numeric only, both operands coerced; failure is false
 *   - in/not_in: any value equal / no value equal
 *   - startswith/endswith: string field, any value matches
 *   - not_startswith: string field, no value matches
 *
 * Operators never raise. A value that cannot be compared makes the leaf
 * false, including for negated operators.
 */

// Operator identifies a leaf filter comparison.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEq
	OpNeq
	OpIn
	OpNotIn
	OpGeq
	OpLeq
	OpGt
	OpLt
	OpStartsWith
	OpNotStartsWith
	OpEndsWith
)

var operatorNames = map[Operator]string{
	OpEq:            "eq",
	OpNeq:           "neq",
	OpIn:            "in",
	OpNotIn:         "not_in",
	OpGeq:           "geq",
	OpLeq:           "leq",
	OpGt:            "gt",
	OpLt:            "lt",
	OpStartsWith:    "startswith",
	OpNotStartsWith: "not_startswith",
	OpEndsWith:      "endswith",
}

func (op Operator) String() string {
	if s, ok := operatorNames[op]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// ParseOperator maps a configuration name ("geq", "not_in") to an Operator.
func ParseOperator(s string) (Operator, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for op, name := range operatorNames {
		if name == s {
			return op, true
		}
	}
	return OpUnspecified, false
}

// Compare applies op to a resolved field value and the leaf's values.
// values must be non-empty; validation guarantees this for compiled rules.
func Compare(op Operator, value any, values []any) bool {
	if len(values) == 0 {
		return false
	}
	switch op {
	case OpEq:
		return compareEqual(value, values[0])
	case OpNeq:
		return !compareEqual(value, values[0])
	case OpGeq:
		c, ok := compareNumeric(value, values[0])
		return ok && c >= 0
	case OpLeq:
		c, ok := compareNumeric(value, values[0])
		return ok && c <= 0
	case OpGt:
		c, ok := compareNumeric(value, values[0])
		return ok && c > 0
	case OpLt:
		c, ok := compareNumeric(value, values[0])
		return ok && c < 0
	case OpIn:
		return compareIn(value, values)
	case OpNotIn:
		return !compareIn(value, values)
	case OpStartsWith:
		return anyString(value, values, strings.HasPrefix)
	case OpNotStartsWith:
		s, ok := value.(string)
		if !ok {
			return false
		}
		return !anyString(s, values, strings.HasPrefix)
	case OpEndsWith:
		return anyString(value, values, strings.HasSuffix)
	default:
		return false
	}
}

// compareEqual performs equality comparison with numeric tolerance.
// Numbers of any Go kind compare by value; everything else by deep equality.
func compareEqual(a, b any) bool {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	if oka && okb {
		return na == nb
	}
	if oka != okb {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compareNumeric performs three-way comparison after numeric coercion.
// ok is false when either side is not coercible.
func compareNumeric(a, b any) (int, bool) {
	na, err := CoerceNumeric(a)
	if err != nil {
		return 0, false
	}
	nb, err := CoerceNumeric(b)
	if err != nil {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	default:
		return 0, true
	}
}

// compareIn checks membership using equality semantics.
func compareIn(value any, set []any) bool {
	for _, elem := range set {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}

// anyString reports whether match(value, v) holds for some v.
// The field must be a string; values are rendered as text.
func anyString(value any, values []any, match func(s, affix string) bool) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	for _, v := range values {
		if match(s, CoerceText(v)) {
			return true
		}
	}
	return false
}
