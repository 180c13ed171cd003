// internal/rules/sort.go
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Rule ordering.
 *
 * Kahn's algorithm processed level by level, so each rule's level is its
 * topological depth (longest dependency chain below it). Within a level the
 * comparator is:
 *   1. unnamed rules first, by original input index
 *   2. named rules, by name, then input index
 *
 * The comparator depends only on names, input positions, and the edge set,
 * which makes Sort idempotent: re-sorting sorted output keeps every level's
 * members and their relative order.
 *
 * Failure modes, all *types.ValidationError:
 *   - duplicate rule name (names key the dependency graph)
 *   - depends_on naming a rule not in the input
 *   - a dependency cycle; the error lists one cycle's participants in order
 */

// Sort orders rules so that every rule follows the rules it depends on.
func Sort(rules []*Rule) ([]*Rule, error) {
	return sortRules(rules, true)
}

// sortRules implements Sort. With strict unset, dependencies on names absent
// from rules are ignored instead of rejected.
func sortRules(rules []*Rule, strict bool) ([]*Rule, error) {
	n := len(rules)
	if n == 0 {
		return nil, nil
	}

	byName := make(map[string]int, n)
	for i, r := range rules {
		if r == nil {
			return nil, types.NewValidationError(fmt.Sprintf("rules[%d]", i), types.ErrMissingValue, "nil rule")
		}
		if r.name == "" {
			continue
		}
		if prev, dup := byName[r.name]; dup {
			return nil, types.NewValidationError(fmt.Sprintf("rules[%d].name", i), types.ErrDuplicateRuleName,
				"rule name %q already used by rules[%d]", r.name, prev)
		}
		byName[r.name] = i
	}

	indeg := make([]int, n)
	out := make([][]int, n)
	deps := make([][]int, n)

	for i, r := range rules {
		for _, d := range r.dependsOn {
			j, ok := byName[d]
			if !ok {
				if !strict {
					continue
				}
				return nil, types.NewValidationError(fmt.Sprintf("rules[%d].depends_on", i), types.ErrUnknownDependency,
					"rule %s depends on unknown rule %q", r.Key(), d)
			}
			indeg[i]++
			out[j] = append(out[j], i)
			deps[i] = append(deps[i], j)
		}
	}

	less := func(a, b int) bool {
		an, bn := rules[a].name, rules[b].name
		if (an == "") != (bn == "") {
			return an == ""
		}
		if an != bn {
			return an < bn
		}
		return a < b
	}

	var level []int
	for i := range n {
		if indeg[i] == 0 {
			level = append(level, i)
		}
	}

	order := make([]*Rule, 0, n)
	for len(level) > 0 {
		sort.Slice(level, func(x, y int) bool { return less(level[x], level[y]) })

		var next []int
		for _, i := range level {
			order = append(order, rules[i])
			for _, j := range out[i] {
				indeg[j]--
				if indeg[j] == 0 {
					next = append(next, j)
				}
			}
		}
		level = next
	}

	if len(order) != n {
		cycle := findCycle(rules, indeg, deps)
		return nil, types.NewValidationError("depends_on", types.ErrDependencyCycle,
			"dependency cycle among rules: %s", strings.Join(cycle, " -> "))
	}

	return order, nil
}

// findCycle walks unresolved dependencies from an unresolved rule until a
// rule repeats, then returns that loop's keys (first key repeated at the end).
// Every unresolved rule has at least one unresolved dependency, so the walk
// always closes.
func findCycle(rules []*Rule, indeg []int, deps [][]int) []string {
	start := -1
	for i := range rules {
		if indeg[i] > 0 && (start == -1 || rules[i].Key() < rules[start].Key()) {
			start = i
		}
	}

	visitedAt := make(map[int]int)
	var walk []int
	cur := start
	for {
		if pos, seen := visitedAt[cur]; seen {
			loop := walk[pos:]
			keys := make([]string, 0, len(loop)+1)
			for _, i := range loop {
				keys = append(keys, rules[i].Key())
			}
			return append(keys, rules[loop[0]].Key())
		}
		visitedAt[cur] = len(walk)
		walk = append(walk, cur)

		next := -1
		for _, d := range deps[cur] {
			if indeg[d] > 0 {
				next = d
				break
			}
		}
		if next == -1 {
			// unreachable when indeg bookkeeping is consistent
			return []string{rules[cur].Key()}
		}
		cur = next
	}
}
