// internal/rules/filter.go
package rules

import (
	"fmt"

	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Filter predicate trees.
 *
 * A Filter is a closed variant: Leaf, And, Or, or Not. The unexported
 * marker method keeps other packages from adding variants, so Evaluate and
 * Validate can switch exhaustively over the concrete types.
 *
 * Validation rules:
 *   - Leaf: field and op set, op known, at least one value
 *   - And/Or: at least one child, every child valid
 *   - Not: exactly one child
 *
 * Errors carry a dotted location ("filter.and[1].op") so a rule file author
 * can find the offending node.
 */

// Filter is a node in a rule's predicate tree.
type Filter interface {
	isFilter()
	validate(at string) error
}

// Leaf compares one candidate field against Values using Op.
type Leaf struct {
	Field  string
	Op     Operator
	Values []any
}

// And matches when every child matches. Evaluation short-circuits.
type And struct {
	Children []Filter
}

// Or matches when any child matches. Evaluation short-circuits.
type Or struct {
	Children []Filter
}

// Not negates a single child.
type Not struct {
	Child Filter
}

func (*Leaf) isFilter() {}
func (*And) isFilter()  {}
func (*Or) isFilter()   {}
func (*Not) isFilter()  {}

// NewLeaf is shorthand for &Leaf{...}.
func NewLeaf(field string, op Operator, values ...any) *Leaf {
	return &Leaf{Field: field, Op: op, Values: values}
}

// AllOf is shorthand for &And{...}.
func AllOf(children ...Filter) *And {
	return &And{Children: children}
}

// AnyOf is shorthand for &Or{...}.
func AnyOf(children ...Filter) *Or {
	return &Or{Children: children}
}

// Negate is shorthand for &Not{...}.
func Negate(child Filter) *Not {
	return &Not{Child: child}
}

// ValidateFilter checks a filter tree. A nil filter is valid (matches all).
func ValidateFilter(f Filter) error {
	if f == nil {
		return nil
	}
	return f.validate("filter")
}

func (l *Leaf) validate(at string) error {
	if l == nil {
		return types.NewValidationError(at, types.ErrMissingValue, "nil leaf filter")
	}
	if l.Field == "" {
		return types.NewValidationError(at+".field", types.ErrMissingValue, "leaf filter requires a field")
	}
	if _, err := types.ParsePath(l.Field); err != nil {
		return types.NewValidationError(at+".field", types.ErrMissingValue, "invalid field path %q", l.Field)
	}
	if l.Op == OpUnspecified {
		return types.NewValidationError(at+".op", types.ErrMissingValue, "leaf filter requires an op")
	}
	if _, ok := operatorNames[l.Op]; !ok {
		return types.NewValidationError(at+".op", types.ErrInvalidOperator, "unknown operator %v", l.Op)
	}
	if len(l.Values) == 0 {
		return types.NewValidationError(at+".values", types.ErrMissingValue, "operator %s requires at least one value", l.Op)
	}
	return nil
}

func (a *And) validate(at string) error {
	if a == nil {
		return types.NewValidationError(at+".and", types.ErrMissingValue, "nil and filter")
	}
	return validateChildren(at+".and", a.Children)
}

func (o *Or) validate(at string) error {
	if o == nil {
		return types.NewValidationError(at+".or", types.ErrMissingValue, "nil or filter")
	}
	return validateChildren(at+".or", o.Children)
}

func (n *Not) validate(at string) error {
	if n == nil || n.Child == nil {
		return types.NewValidationError(at+".not", types.ErrMissingValue, "not requires exactly one child")
	}
	return n.Child.validate(at + ".not")
}

func validateChildren(at string, children []Filter) error {
	if len(children) == 0 {
		return types.NewValidationError(at, types.ErrMissingValue, "combination requires at least one child")
	}
	for i, c := range children {
		if c == nil {
			return types.NewValidationError(fmt.Sprintf("%s[%d]", at, i), types.ErrMissingValue, "nil child filter")
		}
		if err := c.validate(fmt.Sprintf("%s[%d]", at, i)); err != nil {
			return err
		}
	}
	return nil
}
