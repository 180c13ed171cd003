// internal/rules/engine.go
package rules

import (
	"go.uber.org/zap"

	"github.com/solatis/gridxlate/internal/metrics"
	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Rule execution.
 *
 * The engine is a synchronous fold: candidates are read, never mutated, and
 * every rule sees the original pool. Records a rule produces are not fed
 * back into the pool; callers that want chained translation re-feed results
 * themselves.
 *
 * Duplicate target identity: a target's identity is (target type, value of
 * the rule's identity field). The first conversion of an identity wins; a
 * later one, from the same rule or any later rule in sorted order, is
 * skipped with ReasonDuplicateIdentity and logged. Targets without the
 * identity field are never deduplicated.
 *
 * Per-candidate outcomes are exactly one of: converted, or one Skip.
 */

// Engine applies rules to candidate pools.
type Engine struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records per-rule counts on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = c
	}
}

// NewEngine creates a new rules engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOption configures one ApplyRulesToContext call.
type RunOption func(*runConfig)

type runConfig struct {
	version int
}

// WithVersion runs only rules targeting version v. Zero runs every rule.
// Dependencies on rules of other versions are ignored for ordering.
func WithVersion(v int) RunOption {
	return func(c *runConfig) {
		c.version = v
	}
}

// ApplySingleRule applies rule to candidates in order.
// Never fails: every candidate ends up converted or recorded as a skip.
func (e *Engine) ApplySingleRule(rule *Rule, candidates []types.Record) *RuleResult {
	result := e.apply(rule, candidates, make(map[identityKey]string))
	e.record(result)
	return result
}

// ApplyRulesToContext sorts rules by dependency and applies each one to the
// pool entries matching its source type. Sorting errors are returned as is;
// no rule runs when the order cannot be resolved.
func (e *Engine) ApplyRulesToContext(rules []*Rule, pool types.Pool, opts ...RunOption) (*TranslationResult, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	selected := rules
	if cfg.version != 0 {
		selected = make([]*Rule, 0, len(rules))
		for _, r := range rules {
			if r != nil && r.version == cfg.version {
				selected = append(selected, r)
			}
		}
	}

	ordered, err := sortRules(selected, cfg.version == 0)
	if err != nil {
		return nil, err
	}

	seen := make(map[identityKey]string)
	result := newTranslationResult()
	for _, rule := range ordered {
		rr := e.apply(rule, pool[rule.sourceType], seen)
		e.record(rr)
		result.add(rr)
	}

	e.logger.Info("translation finished",
		zap.Int("rules", len(ordered)),
		zap.Int("converted", result.Converted),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

// apply runs one rule against candidates, consulting and updating seen.
func (e *Engine) apply(rule *Rule, candidates []types.Record, seen map[identityKey]string) *RuleResult {
	result := &RuleResult{Rule: rule}
	key := rule.Key()

	for _, c := range candidates {
		if !rule.MatchesType(c) {
			got := "<nil>"
			if c != nil {
				got = c.Type()
			}
			result.addSkip(Skip{
				Candidate: c,
				Kind:      SkipTypeMismatch,
				Reason:    "type mismatch: expected " + rule.sourceType + ", got " + got,
			})
			continue
		}
		if !Evaluate(rule.filter, c) {
			result.addSkip(Skip{Candidate: c, Kind: SkipFilterMismatch, Reason: ReasonFilterMismatch})
			continue
		}

		conv := rule.Convert(c)
		if !conv.OK() {
			e.logger.Debug("candidate skipped",
				zap.String("rule", key),
				zap.String("reason", conv.Skip.Reason))
			result.addSkip(*conv.Skip)
			continue
		}

		if id, ok := rule.identity(conv.Target); ok {
			if owner, dup := seen[id]; dup {
				e.logger.Warn("duplicate target identity",
					zap.String("rule", key),
					zap.String("first_rule", owner),
					zap.String("target_type", id.targetType),
					zap.String("identity", id.value))
				result.addSkip(Skip{Candidate: c, Kind: SkipDuplicateIdentity, Reason: ReasonDuplicateIdentity})
				continue
			}
			seen[id] = key
		}

		result.addRecord(conv.Target)
	}

	return result
}

func (e *Engine) record(r *RuleResult) {
	if e.metrics == nil {
		return
	}
	skipped := make(map[string]int)
	for kind, n := range r.SkipCounts() {
		skipped[kind.String()] = n
	}
	e.metrics.RuleApplied(r.Rule.Key(), r.Converted, skipped)
}
