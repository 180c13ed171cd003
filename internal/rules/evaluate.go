// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Filter evaluation.
 *
 * Evaluate is a pure function of (filter, record). It recurses over the
 * variant: And/Or short-circuit in child order, Not negates its child, and a
 * Leaf resolves its field then defers to Compare.
 *
 * Leaf policy: a field that is missing, unreadable, or nil makes the leaf
 * false. This holds for negated operators too (neq, not_in,
 * not_startswith), so a record lacking "status" never matches
 * status neq "retired". Only an enclosing Not can turn such a miss into a
 * match.
 */

// Evaluate reports whether record satisfies filter. A nil filter matches.
func Evaluate(filter Filter, record types.Record) bool {
	switch f := filter.(type) {
	case nil:
		return true
	case *Leaf:
		return evaluateLeaf(f, record)
	case *And:
		for _, c := range f.Children {
			if !Evaluate(c, record) {
				return false
			}
		}
		return true
	case *Or:
		for _, c := range f.Children {
			if Evaluate(c, record) {
				return true
			}
		}
		return false
	case *Not:
		return !Evaluate(f.Child, record)
	default:
		return false
	}
}

// evaluateLeaf resolves the leaf's field and applies its operator.
func evaluateLeaf(leaf *Leaf, record types.Record) bool {
	if leaf == nil {
		return false
	}
	resolved, err := ResolveField(record, leaf.Field)
	if err != nil || !resolved.Found || resolved.Value == nil {
		return false
	}
	return Compare(leaf.Op, resolved.Value, leaf.Values)
}
