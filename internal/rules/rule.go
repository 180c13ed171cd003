// internal/rules/rule.go
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Rule model.
 *
 * A Definition is plain data (usually decoded from a rule file). NewRule
 * validates it and produces an immutable Rule with a compiled field map.
 *
 * Conversion contract: every field map entry must resolve. The first entry
 * that fails (missing path, expression error, nil expression result) skips
 * the whole candidate with a reason naming the target field. A mapped
 * target with an entry in Defaults falls back to the default when its
 * source path is missing; expression errors never fall back.
 */

// DefaultIdentityField is the target field compared for duplicate detection.
const DefaultIdentityField = "name"

// Definition is the declarative, unvalidated form of a rule.
type Definition struct {
	Name          string
	SourceType    string
	TargetType    string
	Version       int
	FieldMap      FieldMap
	Defaults      map[string]any
	IdentityField string
	Filter        Filter
	DependsOn     []string
}

// Rule is a validated source-type to target-type conversion.
// Rules are immutable after construction and safe to share.
type Rule struct {
	name          string
	sourceType    string
	targetType    string
	version       int
	fields        []compiledField
	fieldMap      FieldMap
	defaults      map[string]any
	identityField string
	filter        Filter
	dependsOn     []string
}

// NewRule validates def and compiles it into a Rule.
// Returns *types.ValidationError naming the offending field.
func NewRule(def Definition) (*Rule, error) {
	if strings.TrimSpace(def.SourceType) == "" {
		return nil, types.NewValidationError("source_type", types.ErrMissingValue, "source type is required")
	}
	if strings.TrimSpace(def.TargetType) == "" {
		return nil, types.NewValidationError("target_type", types.ErrMissingValue, "target type is required")
	}
	if def.Version < 0 {
		return nil, types.NewValidationError("version", types.ErrMissingValue, "version must not be negative, got %d", def.Version)
	}

	fields, err := compileFieldMap(def.FieldMap)
	if err != nil {
		return nil, err
	}

	if err := ValidateFilter(def.Filter); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(def.Name)
	deps := make([]string, 0, len(def.DependsOn))
	seen := make(map[string]bool, len(def.DependsOn))
	for i, d := range def.DependsOn {
		d = strings.TrimSpace(d)
		if d == "" {
			return nil, types.NewValidationError(fmt.Sprintf("depends_on[%d]", i), types.ErrMissingValue, "dependency name is empty")
		}
		if name != "" && d == name {
			return nil, types.NewValidationError(fmt.Sprintf("depends_on[%d]", i), types.ErrDependencyCycle, "rule %q depends on itself", d)
		}
		if !seen[d] {
			seen[d] = true
			deps = append(deps, d)
		}
	}

	identity := strings.TrimSpace(def.IdentityField)
	if identity == "" {
		identity = DefaultIdentityField
	}

	defaults := make(map[string]any, len(def.Defaults))
	for k, v := range def.Defaults {
		defaults[k] = v
	}

	return &Rule{
		name:          name,
		sourceType:    def.SourceType,
		targetType:    def.TargetType,
		version:       def.Version,
		fields:        fields,
		fieldMap:      append(FieldMap(nil), def.FieldMap...),
		defaults:      defaults,
		identityField: identity,
		filter:        def.Filter,
		dependsOn:     deps,
	}, nil
}

// MustNewRule is NewRule that panics on error. Intended for tests and
// statically known rule tables.
func MustNewRule(def Definition) *Rule {
	r, err := NewRule(def)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Rule) Name() string          { return r.name }
func (r *Rule) SourceType() string    { return r.sourceType }
func (r *Rule) TargetType() string    { return r.targetType }
func (r *Rule) Version() int          { return r.version }
func (r *Rule) Filter() Filter        { return r.filter }
func (r *Rule) IdentityField() string { return r.identityField }

// FieldMap returns a copy of the rule's ordered field map.
func (r *Rule) FieldMap() FieldMap {
	return append(FieldMap(nil), r.fieldMap...)
}

// DependsOn returns a copy of the rule's dependency names.
func (r *Rule) DependsOn() []string {
	return append([]string(nil), r.dependsOn...)
}

// Key identifies the rule in results: its name, or source->target@vN when unnamed.
func (r *Rule) Key() string {
	if r.name != "" {
		return r.name
	}
	return fmt.Sprintf("%s->%s@v%d", r.sourceType, r.targetType, r.version)
}

func (r *Rule) String() string {
	return r.Key()
}

// MatchesType reports whether candidate carries the rule's source type tag.
func (r *Rule) MatchesType(candidate types.Record) bool {
	return candidate != nil && candidate.Type() == r.sourceType
}

// AppliesTo reports whether candidate has the source type and passes the filter.
func (r *Rule) AppliesTo(candidate types.Record) bool {
	return r.MatchesType(candidate) && Evaluate(r.filter, candidate)
}

// Conversion is the outcome of converting one candidate: either Target or Skip is set.
type Conversion struct {
	Target *types.Component
	Skip   *Skip
}

// OK reports whether the conversion produced a target record.
func (c Conversion) OK() bool {
	return c.Target != nil
}

// Convert builds a new target record from candidate by resolving every
// field map entry. It does not check AppliesTo; callers do.
func (r *Rule) Convert(candidate types.Record) Conversion {
	var env map[string]any
	lazyEnv := func() map[string]any {
		if env == nil {
			env = expressionEnv(candidate)
		}
		return env
	}

	fields := make(map[string]any, len(r.fields))
	for _, cf := range r.fields {
		v, err := cf.resolve(candidate, lazyEnv)
		if err != nil {
			def, hasDefault := r.defaults[cf.target]
			if !hasDefault || cf.program != nil || !errors.Is(err, types.ErrFieldNotFound) {
				return Conversion{Skip: &Skip{
					Candidate: candidate,
					Kind:      SkipFieldResolution,
					Reason:    fmt.Sprintf("field %q: %v", cf.target, err),
				}}
			}
			v = def
		}
		fields[cf.target] = v
	}

	return Conversion{Target: types.NewComponent(r.targetType, fields)}
}

// identity returns the target identity used for duplicate detection.
// ok is false when the target lacks the identity field.
func (r *Rule) identity(target *types.Component) (identityKey, bool) {
	v, ok := target.Field(r.identityField)
	if !ok || v == nil {
		return identityKey{}, false
	}
	return identityKey{targetType: r.targetType, value: CoerceText(v)}, true
}

// identityKey is (target type, identity value).
type identityKey struct {
	targetType string
	value      string
}
