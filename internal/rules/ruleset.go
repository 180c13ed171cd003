// internal/rules/ruleset.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/gridxlate/internal/types"
)

// ruleKey indexes rules by conversion and schema version.
type ruleKey struct {
	source  string
	target  string
	version int
}

// RuleSet indexes rules by (source type, target type, version). Several
// rules may share a conversion, typically one per filter branch, as long as
// they are named; names are unique. Unnamed rules are identified only by
// their conversion, so two of them may not share one.
type RuleSet struct {
	rules []*Rule
	byKey map[ruleKey][]*Rule
}

// NewRuleSet validates uniqueness of names and of unnamed conversion keys.
func NewRuleSet(rules ...*Rule) (*RuleSet, error) {
	rs := &RuleSet{byKey: make(map[ruleKey][]*Rule, len(rules))}
	names := make(map[string]int, len(rules))
	unnamed := make(map[ruleKey]int)

	for i, r := range rules {
		if r == nil {
			return nil, types.NewValidationError(fmt.Sprintf("rules[%d]", i), types.ErrMissingValue, "nil rule")
		}
		k := ruleKey{source: r.sourceType, target: r.targetType, version: r.version}
		if r.name != "" {
			if prev, dup := names[r.name]; dup {
				return nil, types.NewValidationError(fmt.Sprintf("rules[%d].name", i), types.ErrDuplicateRuleName,
					"rule name %q already used by rules[%d]", r.name, prev)
			}
			names[r.name] = i
		} else {
			if prev, dup := unnamed[k]; dup {
				return nil, types.NewValidationError(fmt.Sprintf("rules[%d]", i), types.ErrDuplicateRuleKey,
					"unnamed %s->%s version %d already defined by rules[%d]; name both rules to keep them apart",
					r.sourceType, r.targetType, r.version, prev)
			}
			unnamed[k] = i
		}
		rs.byKey[k] = append(rs.byKey[k], r)
		rs.rules = append(rs.rules, r)
	}
	return rs, nil
}

// Rules returns the rules in insertion order.
func (rs *RuleSet) Rules() []*Rule {
	return append([]*Rule(nil), rs.rules...)
}

// Find returns the rules converting source to target at version, in
// insertion order.
func (rs *RuleSet) Find(source, target string, version int) []*Rule {
	return append([]*Rule(nil), rs.byKey[ruleKey{source: source, target: target, version: version}]...)
}

// ForVersion returns rules targeting version v in insertion order.
func (rs *RuleSet) ForVersion(v int) []*Rule {
	var out []*Rule
	for _, r := range rs.rules {
		if r.version == v {
			out = append(out, r)
		}
	}
	return out
}

// Versions returns the distinct versions present, ascending.
func (rs *RuleSet) Versions() []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range rs.rules {
		if !seen[r.version] {
			seen[r.version] = true
			out = append(out, r.version)
		}
	}
	sort.Ints(out)
	return out
}
