package leaderboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/mpapenbr/fpv-racedash/pkg/kvconfig"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
)

const labelNoFurtherRaces = "No further races"

// orderRange is the race order interval an override covers.
type orderRange struct {
	from, to int
}

func (r orderRange) contains(order int) bool {
	return order >= r.from && order <= r.to
}

func (r orderRange) overlaps(o orderRange) bool {
	return r.from <= o.to && o.from <= r.to
}

// rangeOf resolves the source ids of an override to race orders.
// An entry without start covers everything from its end onwards (or
// everything if it has no end either); an entry without end is open ended.
func rangeOf(snap *model.Snapshot, o kvconfig.NextRaceOverride) (orderRange, []string) {
	var problems []string
	ret := orderRange{from: math.MinInt, to: math.MaxInt}
	lookup := func(sourceID, what string) (int, bool) {
		r, ok := snap.RaceBySourceID(sourceID)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown %s race %q", what, sourceID))
			return 0, false
		}
		return r.RaceOrder, true
	}
	start, hasStart := 0, false
	end, hasEnd := 0, false
	if o.StartSourceID != "" {
		start, hasStart = lookup(o.StartSourceID, "start")
	}
	if o.EndSourceID != "" {
		end, hasEnd = lookup(o.EndSourceID, "end")
	}
	switch {
	case o.StartSourceID == "" && hasEnd:
		ret.from = end
	case hasStart && hasEnd:
		ret.from, ret.to = start, end
		if start > end {
			problems = append(problems,
				fmt.Sprintf("start race %q comes after end race %q", o.StartSourceID, o.EndSourceID))
		}
	case hasStart:
		ret.from = start
	}
	return ret, problems
}

// ValidateOverrides checks next race overrides before they are saved.
// The returned messages are meant for humans; an empty result means the
// overrides may be stored.
func ValidateOverrides(snap *model.Snapshot, overrides []kvconfig.NextRaceOverride) []string {
	ret := []string{}
	type checked struct {
		idx int
		r   orderRange
	}
	valid := []checked{}
	for i, o := range overrides {
		prefix := fmt.Sprintf("entry %d: ", i+1)
		if strings.TrimSpace(o.Label) == "" {
			ret = append(ret, prefix+"label is empty")
		}
		r, problems := rangeOf(snap, o)
		for _, p := range problems {
			ret = append(ret, prefix+p)
		}
		if len(problems) == 0 {
			valid = append(valid, checked{idx: i + 1, r: r})
		}
	}
	for i := range valid {
		for j := i + 1; j < len(valid); j++ {
			if valid[i].r.overlaps(valid[j].r) {
				ret = append(ret, fmt.Sprintf("entries %d and %d overlap", valid[i].idx, valid[j].idx))
			}
		}
	}
	return ret
}

// resolveNextRace determines the race following current. The first
// applicable override replaces the label; invalid overrides are skipped.
//
//nolint:whitespace // editor/linter issue
func resolveNextRace(
	snap *model.Snapshot,
	current *model.Race,
	overrides []kvconfig.NextRaceOverride,
) *NextRace {
	var next *model.Race
	currentOrder := math.MinInt
	if current != nil {
		currentOrder = current.RaceOrder
	}
	for _, r := range snap.Races() {
		if r.RaceOrder > currentOrder && r.Status() == model.RaceScheduled {
			next = r
			break
		}
	}
	if current != nil {
		for _, o := range overrides {
			r, problems := rangeOf(snap, o)
			if len(problems) > 0 || !r.contains(current.RaceOrder) {
				continue
			}
			ret := &NextRace{Label: o.Label, Overridden: true}
			if o.StartSourceID == "" {
				ret.NoFurtherRaces = true
				if ret.Label == "" {
					ret.Label = labelNoFurtherRaces
				}
				return ret
			}
			if next != nil {
				ret.RaceID = next.ID
				ret.RaceOrder = next.RaceOrder
			}
			return ret
		}
	}
	if next == nil {
		return &NextRace{Label: labelNoFurtherRaces, NoFurtherRaces: true}
	}
	label := next.ID
	if round, ok := snap.RoundOf(next); ok {
		label = fmt.Sprintf("%s - Race %d", round.Name, next.RaceOrder)
	}
	return &NextRace{RaceID: next.ID, RaceOrder: next.RaceOrder, Label: label}
}
