package rules

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/gridxlate/internal/types"
)

func testRule(name string, deps ...string) *Rule {
	return MustNewRule(Definition{
		Name:       name,
		SourceType: "Src",
		TargetType: "Dst",
		FieldMap:   FieldMap{{Target: "name", Source: "name"}},
		DependsOn:  deps,
	})
}

func keys(rules []*Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Key()
	}
	return out
}

func sameOrder(a, b []*Rule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSort_Dependencies(t *testing.T) {
	lines := testRule("lines", "buses")
	buses := testRule("buses", "areas")
	areas := testRule("areas")
	gens := testRule("generators", "buses")

	got, err := Sort([]*Rule{lines, gens, buses, areas})
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	want := "areas buses generators lines"
	if strings.Join(keys(got), " ") != want {
		t.Errorf("Sort() = %v, want %s", keys(got), want)
	}
}

func TestSort_TieBreak(t *testing.T) {
	u1 := MustNewRule(Definition{SourceType: "B", TargetType: "X", FieldMap: FieldMap{{Target: "name", Source: "name"}}})
	u2 := MustNewRule(Definition{SourceType: "A", TargetType: "X", FieldMap: FieldMap{{Target: "name", Source: "name"}}})
	zeta := testRule("zeta")
	alpha := testRule("alpha")
	child := testRule("child", "zeta")

	got, err := Sort([]*Rule{zeta, u1, child, alpha, u2})
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}

	// Depth 0: unnamed by input index, then named by name. Depth 1: child.
	want := []*Rule{u1, u2, alpha, zeta, child}
	if !sameOrder(got, want) {
		t.Errorf("Sort() = %v, want %v", keys(got), keys(want))
	}
}

func TestSort_Cycle(t *testing.T) {
	rule1 := testRule("rule1", "rule2")
	rule2 := testRule("rule2", "rule1")

	_, err := Sort([]*Rule{rule1, rule2})

	var ve *types.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Sort() error = %v, want *ValidationError", err)
	}
	if !errors.Is(err, types.ErrDependencyCycle) {
		t.Errorf("error = %v, want ErrDependencyCycle", err)
	}
	if !strings.Contains(ve.Reason, "rule1 -> rule2 -> rule1") {
		t.Errorf("Reason = %q, want cycle rule1 -> rule2 -> rule1", ve.Reason)
	}
}

func TestSort_CycleBehindAcyclicPrefix(t *testing.T) {
	root := testRule("root")
	a := testRule("a", "root", "c")
	b := testRule("b", "a")
	c := testRule("c", "b")
	leaf := testRule("leaf", "a")

	_, err := Sort([]*Rule{leaf, c, b, a, root})
	var ve *types.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, types.ErrDependencyCycle) {
		t.Fatalf("Sort() error = %v, want dependency cycle", err)
	}
	if !strings.HasSuffix(ve.Reason, ": a -> c -> b -> a") {
		t.Errorf("Reason = %q, want cycle a -> c -> b -> a", ve.Reason)
	}
}

func TestSort_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rules   []*Rule
		wantErr error
	}{
		{"unknown dependency", []*Rule{testRule("a", "missing")}, types.ErrUnknownDependency},
		{"duplicate name", []*Rule{testRule("a"), testRule("a")}, types.ErrDuplicateRuleName},
		{"nil rule", []*Rule{testRule("a"), nil}, types.ErrMissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sort(tt.rules)
			var ve *types.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Sort() error = %v, want *ValidationError", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSort_Empty(t *testing.T) {
	got, err := Sort(nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Sort(nil) = %v, %v; want empty, nil", got, err)
	}
}

// randomDAG builds n rules where rule i may depend on any rule j < i, then
// shuffles the input order. About a third of dependency-free rules are unnamed.
func randomDAG(n int, seed int64) []*Rule {
	rng := rand.New(rand.NewSource(seed))
	rules := make([]*Rule, n)
	for i := range rules {
		var deps []string
		for j := 0; j < i; j++ {
			if rules[j].Name() != "" && rng.Intn(3) == 0 {
				deps = append(deps, rules[j].Name())
			}
		}
		name := fmt.Sprintf("r%02d", rng.Intn(1000)*100+i)
		if len(deps) == 0 && rng.Intn(3) == 0 {
			name = ""
		}
		rules[i] = testRule(name, deps...)
	}
	rng.Shuffle(n, func(i, j int) { rules[i], rules[j] = rules[j], rules[i] })
	return rules
}

// Property-based test: sort is idempotent and respects dependencies
func TestSort_PropertyIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sorting sorted output is a no-op", prop.ForAll(
		func(n int, seed int64) bool {
			once, err := Sort(randomDAG(n, seed))
			if err != nil {
				return false
			}
			twice, err := Sort(once)
			if err != nil {
				return false
			}
			return sameOrder(once, twice)
		},
		gen.IntRange(0, 25),
		gen.Int64(),
	))

	properties.Property("every rule follows its dependencies", prop.ForAll(
		func(n int, seed int64) bool {
			sorted, err := Sort(randomDAG(n, seed))
			if err != nil {
				return false
			}
			pos := make(map[string]int, len(sorted))
			for i, r := range sorted {
				if r.Name() != "" {
					pos[r.Name()] = i
				}
			}
			for i, r := range sorted {
				for _, d := range r.DependsOn() {
					if pos[d] >= i {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 25),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Property-based test: unnamed dependency-free rules keep input order
func TestSort_PropertyPreservesUnnamedOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("unnamed rules keep their input order", prop.ForAll(
		func(sources []string) bool {
			rules := make([]*Rule, len(sources))
			for i, src := range sources {
				rules[i] = MustNewRule(Definition{
					SourceType: "S" + src,
					TargetType: "T",
					FieldMap:   FieldMap{{Target: "name", Source: "name"}},
				})
			}
			sorted, err := Sort(rules)
			return err == nil && sameOrder(sorted, rules)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
