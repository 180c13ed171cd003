// internal/rules/compile.go
package rules

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Field map compilation.
 *
 * Each field map entry names a target field and where its value comes from:
 *   - a dotted source path ("capacity", "bus.name", "ratings.0"), or
 *   - an expression prefixed with '=' ("=capacity * 1000"), compiled once
 *     with expr-lang against the candidate's attributes.
 *
 * Compilation happens at rule construction so that a typo in a path or an
 * expression syntax error fails the rule, not every row. Resolution at
 * convert time returns a value or an error; the caller turns errors into a
 * per-row skip.
 *
 * Expression environment: the candidate's attributes (when the record
 * exposes them through types.Attributer) plus "_type" for the type tag.
 * Undefined variables evaluate to nil rather than failing compilation.
 */

// ExpressionPrefix marks a field map source as an expression.
const ExpressionPrefix = "="

// FieldMapping is one ordered target <- source entry of a rule's field map.
type FieldMapping struct {
	Target string
	Source string
}

// FieldMap is an ordered list of mappings. Order sets resolution precedence
// (the first failing entry names the skip reason); it does not change the
// set of target fields.
type FieldMap []FieldMapping

// Targets returns target field names in map order.
func (m FieldMap) Targets() []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Target
	}
	return out
}

// compiledField is a FieldMapping ready for resolution.
type compiledField struct {
	target  string
	source  string
	path    []types.PathSegment
	program *vm.Program
}

// compileFieldMap validates and pre-processes a field map.
func compileFieldMap(fm FieldMap) ([]compiledField, error) {
	if len(fm) == 0 {
		return nil, types.NewValidationError("field_map", types.ErrEmptyFieldMap, "at least one target field is required")
	}

	seen := make(map[string]bool, len(fm))
	out := make([]compiledField, 0, len(fm))

	for _, entry := range fm {
		target := strings.TrimSpace(entry.Target)
		if target == "" {
			return nil, types.NewValidationError("field_map", types.ErrMissingValue, "target field name is empty")
		}
		at := "field_map." + target
		if seen[target] {
			return nil, types.NewValidationError(at, types.ErrMissingValue, "target field %q mapped twice", target)
		}
		seen[target] = true

		source := strings.TrimSpace(entry.Source)
		if source == "" {
			return nil, types.NewValidationError(at, types.ErrMissingValue, "source for %q is empty", target)
		}

		cf := compiledField{target: target, source: source}
		if strings.HasPrefix(source, ExpressionPrefix) {
			code := strings.TrimSpace(strings.TrimPrefix(source, ExpressionPrefix))
			if code == "" {
				return nil, types.NewValidationError(at, types.ErrInvalidExpression, "empty expression")
			}
			program, err := expr.Compile(code, expr.AllowUndefinedVariables())
			if err != nil {
				return nil, types.NewValidationError(at, types.ErrInvalidExpression, "%v", err)
			}
			cf.program = program
		} else {
			path, err := types.ParsePath(source)
			if err != nil {
				return nil, types.NewValidationError(at, types.ErrMissingValue, "invalid source path %q", source)
			}
			cf.path = path
		}
		out = append(out, cf)
	}

	return out, nil
}

// resolve produces the target value for one candidate.
// env is built lazily by the caller and shared across expression fields.
func (cf compiledField) resolve(record types.Record, env func() map[string]any) (any, error) {
	if cf.program == nil {
		res, err := Resolve(record, cf.path)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", cf.source, err)
		}
		return res.Value, nil
	}

	out, err := expr.Run(cf.program, env())
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", cf.source, err)
	}
	if out == nil {
		return nil, fmt.Errorf("expression %q: %w", cf.source, types.ErrFieldNotFound)
	}
	return out, nil
}

// expressionEnv builds the expr-lang environment for a candidate.
func expressionEnv(record types.Record) map[string]any {
	env := make(map[string]any)
	if a, ok := record.(types.Attributer); ok {
		for k, v := range a.Attributes() {
			env[k] = v
		}
	}
	env["_type"] = record.Type()
	return env
}
