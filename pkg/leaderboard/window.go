package leaderboard

import (
	"github.com/aarondl/opt/null"
	"github.com/samber/lo"

	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/kvconfig"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
)

// CurrentRace resolves the race the leaderboard is built around.
// An explicit race/currentOrder entry wins, then the active race, then the
// last completed race. Invalidated races are never current.
func CurrentRace(snap *model.Snapshot, co *kvconfig.CurrentOrder) (*model.Race, bool) {
	if co != nil {
		if co.Order != nil {
			if r, ok := snap.RaceByOrder(*co.Order); ok && r.Valid {
				return r, true
			}
		}
		if co.SourceID != "" {
			if r, ok := snap.RaceBySourceID(co.SourceID); ok && r.Valid {
				return r, true
			}
		}
	}
	races := snap.Races()
	if r, ok := lo.Find(races, func(r *model.Race) bool {
		return r.Status() == model.RaceActive
	}); ok {
		return r, true
	}
	r, _, ok := lo.FindLastIndexOf(races, func(r *model.Race) bool {
		return r.Status() == model.RaceCompleted
	})
	return r, ok
}

// Window returns the valid races of the round of race with a race order
// up to the one of race, ordered by race order.
func Window(snap *model.Snapshot, race *model.Race) []*model.Race {
	if race == nil {
		return nil
	}
	return lo.Filter(snap.Races(), func(r *model.Race, _ int) bool {
		return r.Valid && r.Round == race.Round && r.RaceOrder <= race.RaceOrder
	})
}

// windowPilots collects the pilots of all races in the window in order of
// first appearance.
func windowPilots(snap *model.Snapshot, races []*model.Race) []string {
	ret := []string{}
	for _, r := range races {
		ret = append(ret, snap.RacePilots(r.ID)...)
	}
	return lo.Uniq(ret)
}

// windowProvider aggregates metrics over several races: the best value of
// each race counts, the channel slot is taken from the first race the pilot
// is scheduled in.
type windowProvider struct {
	c       *calc.Calculator
	raceIDs []string
}

func newWindowProvider(c *calc.Calculator, races []*model.Race) windowProvider {
	return windowProvider{
		c:       c,
		raceIDs: lo.Map(races, func(r *model.Race, _ int) string { return r.ID }),
	}
}

func (w windowProvider) Value(m calc.Metric, pilotID string) null.Val[float64] {
	ret := null.Val[float64]{}
	for _, id := range w.raceIDs {
		v := w.c.Value(id, pilotID, m)
		if m == calc.MetricChannelSlot {
			if v.IsValue() {
				return v
			}
			continue
		}
		ret = calc.Better(m, ret, v)
	}
	return ret
}
