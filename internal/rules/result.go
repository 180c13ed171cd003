// internal/rules/result.go
package rules

import (
	"fmt"

	"github.com/solatis/gridxlate/internal/types"
)

// SkipKind classifies why a candidate produced no target record.
type SkipKind int

const (
	SkipTypeMismatch SkipKind = iota + 1
	SkipFilterMismatch
	SkipFieldResolution
	SkipDuplicateIdentity
)

func (k SkipKind) String() string {
	switch k {
	case SkipTypeMismatch:
		return "type_mismatch"
	case SkipFilterMismatch:
		return "filter_mismatch"
	case SkipFieldResolution:
		return "field_resolution"
	case SkipDuplicateIdentity:
		return "duplicate_identity"
	default:
		return fmt.Sprintf("SkipKind(%d)", int(k))
	}
}

// Skip reasons with fixed wording.
const (
	ReasonFilterMismatch    = "filter mismatch"
	ReasonDuplicateIdentity = "duplicate target identity"
)

// Skip is a per-candidate diagnostic.
type Skip struct {
	Candidate types.Record
	Kind      SkipKind
	Reason    string
}

func (s Skip) String() string {
	return fmt.Sprintf("%s: %s", s.Kind, s.Reason)
}

// RuleResult is the outcome of applying one rule.
type RuleResult struct {
	Rule      *Rule
	Converted int
	Skipped   int
	Records   []*types.Component
	Skips     []Skip
}

func (r *RuleResult) addRecord(c *types.Component) {
	r.Records = append(r.Records, c)
	r.Converted++
}

func (r *RuleResult) addSkip(s Skip) {
	r.Skips = append(r.Skips, s)
	r.Skipped++
}

// SkipCounts returns skip totals per kind.
func (r *RuleResult) SkipCounts() map[SkipKind]int {
	counts := make(map[SkipKind]int)
	for _, s := range r.Skips {
		counts[s.Kind]++
	}
	return counts
}

// TranslationResult aggregates RuleResults in execution order.
type TranslationResult struct {
	Results   []*RuleResult
	Converted int
	Skipped   int
	byKey     map[string][]*RuleResult
}

func newTranslationResult() *TranslationResult {
	return &TranslationResult{byKey: make(map[string][]*RuleResult)}
}

func (t *TranslationResult) add(r *RuleResult) {
	t.Results = append(t.Results, r)
	t.Converted += r.Converted
	t.Skipped += r.Skipped
	key := r.Rule.Key()
	t.byKey[key] = append(t.byKey[key], r)
}

// Lookup returns the result for a rule by name (or Key for unnamed rules).
// Unnamed rules converting the same types at the same version share a key;
// Lookup returns the first of them in execution order.
func (t *TranslationResult) Lookup(name string) (*RuleResult, bool) {
	rs := t.byKey[name]
	if len(rs) == 0 {
		return nil, false
	}
	return rs[0], true
}

// LookupAll returns every result recorded under name, in execution order.
func (t *TranslationResult) LookupAll(name string) []*RuleResult {
	return append([]*RuleResult(nil), t.byKey[name]...)
}

// Records returns all converted records in execution order.
func (t *TranslationResult) Records() []*types.Component {
	var out []*types.Component
	for _, r := range t.Results {
		out = append(out, r.Records...)
	}
	return out
}

// RecordsByType groups converted records by target type tag.
func (t *TranslationResult) RecordsByType() map[string][]*types.Component {
	out := make(map[string][]*types.Component)
	for _, r := range t.Results {
		for _, c := range r.Records {
			out[c.TypeName] = append(out[c.TypeName], c)
		}
	}
	return out
}
