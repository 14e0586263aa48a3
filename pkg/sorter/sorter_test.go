//nolint:funlen // ok for tests
package sorter

import (
	"testing"

	"github.com/aarondl/opt/null"
	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

// values per item and criterion name; missing entries are null
type testCtx map[string]map[string]float64

func value(name string) ValueFunc[testCtx] {
	return func(id string, ctx testCtx) null.Val[float64] {
		if v, ok := ctx[id][name]; ok {
			return null.From(v)
		}
		return null.Val[float64]{}
	}
}

type hasValue string

func (h hasValue) Holds(id string, ctx testCtx) bool {
	_, ok := ctx[id][string(h)]
	return ok
}

func (h hasValue) String() string { return "has " + string(h) }

func crit(name string, d Direction, n NullPolicy) Criterion[testCtx] {
	return Criterion[testCtx]{Name: name, Value: value(name), Direction: d, Nulls: n}
}

func TestSortSingleGroup(t *testing.T) {
	ctx := testCtx{
		"a": {"x": 3},
		"b": {"x": 1},
		"c": {},
		"d": {"x": 2},
	}
	tests := []struct {
		name   string
		groups []Group[testCtx]
		want   []string
	}{
		{
			name:   "asc nulls last",
			groups: []Group[testCtx]{{Name: "all", Criteria: []Criterion[testCtx]{crit("x", Asc, NullsLast)}}},
			want:   []string{"b", "d", "a", "c"},
		},
		{
			name:   "desc nulls first",
			groups: []Group[testCtx]{{Name: "all", Criteria: []Criterion[testCtx]{crit("x", Desc, NullsFirst)}}},
			want:   []string{"c", "a", "d", "b"},
		},
		{
			name:   "no criteria keeps input order",
			groups: []Group[testCtx]{{Name: "all"}},
			want:   []string{"a", "b", "c", "d"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sort([]string{"a", "b", "c", "d"}, tt.groups, ctx)
			assert.DeepEqual(t, tt.want, got)
		})
	}
}

func TestSortTieBreakChain(t *testing.T) {
	ctx := testCtx{
		"a": {"x": 1, "y": 5},
		"b": {"x": 1, "y": 3},
		"c": {"x": 1},
		"d": {"x": 0, "y": 9},
	}
	groups := []Group[testCtx]{{
		Name: "all",
		Criteria: []Criterion[testCtx]{
			crit("x", Asc, NullsLast),
			crit("y", Asc, NullsLast),
		},
	}}
	got := Sort([]string{"a", "b", "c", "d"}, groups, ctx)
	assert.DeepEqual(t, []string{"d", "b", "a", "c"}, got)
}

func TestSortGroupsAndNoMembership(t *testing.T) {
	ctx := testCtx{
		"fast":    {"done": 1, "t": 10},
		"slow":    {"done": 1, "t": 20},
		"partial": {"laps": 2},
		"lost":    {},
		"lost2":   {},
	}
	groups := []Group[testCtx]{
		{Name: "done", Condition: hasValue("done"), Criteria: []Criterion[testCtx]{crit("t", Asc, NullsLast)}},
		{Name: "partial", Condition: hasValue("laps"), Criteria: []Criterion[testCtx]{crit("laps", Desc, NullsLast)}},
	}
	got := Sort([]string{"lost", "partial", "slow", "lost2", "fast"}, groups, ctx)
	// items without membership keep their relative order at the end
	assert.DeepEqual(t, []string{"fast", "slow", "partial", "lost", "lost2"}, got)
}

func TestSortNestedGroups(t *testing.T) {
	ctx := testCtx{
		"a": {"q": 1, "gold": 1, "t": 30},
		"b": {"q": 1, "t": 10},
		"c": {"q": 1, "gold": 1, "t": 20},
		"d": {"t": 5},
	}
	groups := []Group[testCtx]{
		{
			Name:      "qualified",
			Condition: hasValue("q"),
			Criteria:  []Criterion[testCtx]{crit("t", Asc, NullsLast)},
			Children: []Group[testCtx]{
				{Name: "gold", Condition: hasValue("gold"), Criteria: []Criterion[testCtx]{crit("t", Asc, NullsLast)}},
			},
		},
		{Name: "rest", Criteria: []Criterion[testCtx]{crit("t", Asc, NullsLast)}},
	}
	assert.DeepEqual(t, []int{0, 0}, Path("a", groups, ctx))
	assert.DeepEqual(t, []int{0}, Path("b", groups, ctx))
	assert.DeepEqual(t, []int{1}, Path("d", groups, ctx))
	assert.Equal(t, "gold", GroupAt(groups, []int{0, 0}).Name)

	got := Sort([]string{"a", "b", "c", "d"}, groups, ctx)
	// b shares only the parent group with a and c: compared by the parent's criteria
	assert.DeepEqual(t, []string{"b", "c", "a", "d"}, got)
}

func TestSortDeterministic(t *testing.T) {
	ctx := testCtx{}
	ids := []string{}
	for i := 0; i < 50; i++ {
		id := string(rune('A' + i%26)) + string(rune('a'+i/26))
		ids = append(ids, id)
		ctx[id] = map[string]float64{"x": float64(i % 7)}
	}
	groups := []Group[testCtx]{{Name: "all", Criteria: []Criterion[testCtx]{crit("x", Desc, NullsLast)}}}
	first := Sort(ids, groups, ctx)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Sort(ids, groups, ctx)); diff != "" {
			t.Fatalf("sort not deterministic (-first +got):\n%s", diff)
		}
	}
}

func TestNullTailInvariant(t *testing.T) {
	ctx := testCtx{"n": {"x": 1}, "v": {"x": 1, "y": 100}}
	criteria := []Criterion[testCtx]{crit("x", Asc, NullsLast), crit("y", Asc, NullsLast)}
	assert.Assert(t, CompareCriteria("v", "n", criteria, ctx) < 0)
	assert.Assert(t, CompareCriteria("n", "v", criteria, ctx) > 0)
	assert.Equal(t, 0, CompareCriteria("n", "n", criteria, ctx))
}

func TestCompare(t *testing.T) {
	ctx := testCtx{"a": {"x": 1}, "b": {"x": 2}}
	groups := []Group[testCtx]{{Name: "all", Criteria: []Criterion[testCtx]{crit("x", Asc, NullsLast)}}}
	assert.Assert(t, Compare("a", "b", groups, ctx) < 0)
	assert.Assert(t, Compare("b", "a", groups, ctx) > 0)
}
