// Package sorter orders items by a declarative tree of groups, each with
// an optional membership condition and a list of tie-break criteria.
package sorter

import (
	"slices"

	"github.com/aarondl/opt/null"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

type NullPolicy int

const (
	NullsLast NullPolicy = iota
	NullsFirst
)

func (n NullPolicy) String() string {
	if n == NullsFirst {
		return "nullsFirst"
	}
	return "nullsLast"
}

type (
	// ValueFunc reads the value of an item. A null value means "not
	// available" and is placed according to the criterion's NullPolicy.
	ValueFunc[C any] func(id string, ctx C) null.Val[float64]

	// Condition decides group membership.
	Condition[C any] interface {
		Holds(id string, ctx C) bool
		String() string
	}

	Criterion[C any] struct {
		Name      string
		Value     ValueFunc[C]
		Direction Direction
		Nulls     NullPolicy
	}

	// Group is a node of the sort tree. A nil Condition matches every item.
	Group[C any] struct {
		Name      string
		Condition Condition[C]
		Criteria  []Criterion[C]
		Children  []Group[C]
	}
)

func (g *Group[C]) matches(id string, ctx C) bool {
	return g.Condition == nil || g.Condition.Holds(id, ctx)
}

// Path computes the group path of an item as sibling indexes from the root.
// At every level the first matching group is selected; the walk stops at a
// group without children or when no child matches. An empty path means
// the item matched no root group.
func Path[C any](id string, groups []Group[C], ctx C) []int {
	path := make([]int, 0, 2)
	level := groups
	for len(level) > 0 {
		idx := slices.IndexFunc(level, func(g Group[C]) bool { return g.matches(id, ctx) })
		if idx == -1 {
			break
		}
		path = append(path, idx)
		level = level[idx].Children
	}
	return path
}

// GroupAt resolves a path to its group. Returns nil for an empty path.
func GroupAt[C any](groups []Group[C], path []int) *Group[C] {
	var g *Group[C]
	level := groups
	for _, idx := range path {
		g = &level[idx]
		level = g.Children
	}
	return g
}

// Sort returns the ids ordered by the group tree. The input slice is not
// modified. Equal items keep their input order.
func Sort[C any](ids []string, groups []Group[C], ctx C) []string {
	type entry struct {
		id   string
		path []int
	}
	entries := make([]entry, len(ids))
	for i, id := range ids {
		entries[i] = entry{id: id, path: Path(id, groups, ctx)}
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		return comparePaths(a.id, b.id, a.path, b.path, groups, ctx)
	})
	ret := make([]string, len(entries))
	for i := range entries {
		ret[i] = entries[i].id
	}
	return ret
}

// Compare compares two items by the group tree. It returns a negative
// number if a ranks before b, a positive number if b ranks before a and 0
// if they are equal.
func Compare[C any](a, b string, groups []Group[C], ctx C) int {
	return comparePaths(a, b, Path(a, groups, ctx), Path(b, groups, ctx), groups, ctx)
}

//nolint:whitespace // editor/linter issue
func comparePaths[C any](
	a, b string,
	pa, pb []int,
	groups []Group[C],
	ctx C,
) int {
	// items without group membership go last
	switch {
	case len(pa) == 0 && len(pb) == 0:
		return 0
	case len(pa) == 0:
		return 1
	case len(pb) == 0:
		return -1
	}
	shared := min(len(pa), len(pb))
	for i := 0; i < shared; i++ {
		if pa[i] != pb[i] {
			return pa[i] - pb[i]
		}
	}
	// paths agree up to the shorter one; use the deepest shared group
	g := GroupAt(groups, pa[:shared])
	return CompareCriteria(a, b, g.Criteria, ctx)
}

// CompareCriteria applies the criteria in order. A null on either side is
// resolved by that criterion's NullPolicy alone.
//
//nolint:gocognit,cyclop // readability
func CompareCriteria[C any](a, b string, criteria []Criterion[C], ctx C) int {
	for i := range criteria {
		c := &criteria[i]
		va, aok := c.Value(a, ctx).Get()
		vb, bok := c.Value(b, ctx).Get()
		switch {
		case !aok && !bok:
			continue
		case !aok:
			if c.Nulls == NullsFirst {
				return -1
			}
			return 1
		case !bok:
			if c.Nulls == NullsFirst {
				return 1
			}
			return -1
		}
		if va == vb {
			continue
		}
		diff := -1
		if va > vb {
			diff = 1
		}
		if c.Direction == Desc {
			diff = -diff
		}
		return diff
	}
	return 0
}
