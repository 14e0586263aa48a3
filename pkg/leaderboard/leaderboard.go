// Package leaderboard assembles the standings of the current round and
// tracks position changes between consecutive race windows.
package leaderboard

import (
	"math"
	"slices"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/kvconfig"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/ranking"
	"github.com/mpapenbr/fpv-racedash/pkg/sorter"
)

//nolint:tagliatelle // client compatibility
type (
	Entry struct {
		Position int                          `json:"position"`
		PilotID  string                       `json:"pilotId"`
		Name     string                       `json:"name"`
		Group    string                       `json:"group"`
		Locked   bool                         `json:"locked,omitempty"`
		Note     string                       `json:"note,omitempty"`
		Done     bool                         `json:"done,omitempty"`
		BelowCut bool                         `json:"belowCut,omitempty"`
		PrevRank *int                         `json:"prevRank,omitempty"`
		Metrics  map[string]null.Val[float64] `json:"metrics"`
	}
	ClosestLap struct {
		PilotID   string  `json:"pilotId"`
		RaceID    string  `json:"raceId"`
		LapNumber int     `json:"lapNumber"`
		Seconds   float64 `json:"seconds"`
		Target    float64 `json:"target"`
		Delta     float64 `json:"delta"`
	}
	NextRace struct {
		RaceID         string `json:"raceId,omitempty"`
		RaceOrder      int    `json:"raceOrder,omitempty"`
		Label          string `json:"label"`
		NoFurtherRaces bool   `json:"noFurtherRaces,omitempty"`
		Overridden     bool   `json:"overridden,omitempty"`
	}
	Leaderboard struct {
		CurrentRaceID   string         `json:"currentRaceId,omitempty"`
		RoundID         string         `json:"roundId,omitempty"`
		EventType       string         `json:"eventType,omitempty"`
		WindowRaceIDs   []string       `json:"windowRaceIds"`
		Current         []string       `json:"current"`
		Previous        []string       `json:"previous"`
		PositionChanges map[string]int `json:"positionChanges"`
		Entries         []Entry        `json:"entries"`
		SplitIndex      *int           `json:"splitIndex,omitempty"`
		ClosestLap      *ClosestLap    `json:"closestLap,omitempty"`
		NextRace        *NextRace      `json:"nextRace,omitempty"`
	}
)

var metricsOfInterest = []calc.Metric{
	calc.MetricCompletedLaps,
	calc.MetricBestLap,
	calc.MetricConsecutive,
	calc.MetricFinishElapsed,
	calc.MetricCompletionTime,
	calc.MetricTotalTime,
}

// Assemble builds the leaderboard for the snapshot the calculator is bound to.
func Assemble(c *calc.Calculator, cfg *kvconfig.Config) *Leaderboard {
	snap := c.Snapshot()
	ret := &Leaderboard{
		WindowRaceIDs:   []string{},
		Current:         []string{},
		Previous:        []string{},
		PositionChanges: map[string]int{},
		Entries:         []Entry{},
		SplitIndex:      cfg.SplitIndex,
	}
	race, ok := CurrentRace(snap, cfg.CurrentOrder)
	if !ok {
		ret.NextRace = resolveNextRace(snap, nil, cfg.NextRaceOverrides)
		return ret
	}
	ret.CurrentRaceID = race.ID
	ret.RoundID = race.Round
	typ := ranking.RoundType(snap, race)
	ret.EventType = string(typ)
	groups := ranking.GroupsFor(typ)

	window := Window(snap, race)
	for _, r := range window {
		ret.WindowRaceIDs = append(ret.WindowRaceIDs, r.ID)
	}
	cur := newWindowProvider(c, window)
	ret.Current = ApplyLocks(
		sorter.Sort(windowPilots(snap, window), groups, cur), cfg.LockedPositions)
	if len(window) > 1 {
		prevWindow := window[:len(window)-1]
		ret.Previous = ApplyLocks(
			sorter.Sort(windowPilots(snap, prevWindow), groups, newWindowProvider(c, prevWindow)),
			cfg.LockedPositions)
	}
	ret.PositionChanges = PositionChanges(ret.Current, ret.Previous)
	ret.Entries = buildEntries(snap, ret, groups, cur, cfg)
	if cfg.ClosestLapTarget != nil {
		ret.ClosestLap = findClosestLap(c, window, *cfg.ClosestLapTarget)
	}
	ret.NextRace = resolveNextRace(snap, race, cfg.NextRaceOverrides)
	log.Default().Named("leaderboard").Debug("assembled",
		log.String("race", race.ID), log.Int("window", len(window)),
		log.Int("pilots", len(ret.Current)))
	return ret
}

//nolint:whitespace // editor/linter issue
func buildEntries(
	snap *model.Snapshot,
	lb *Leaderboard,
	groups []ranking.Group,
	p calc.Provider,
	cfg *kvconfig.Config,
) []Entry {
	locks := map[string]kvconfig.LockedPosition{}
	for _, lp := range cfg.LockedPositions {
		if _, ok := locks[lp.PilotID]; !ok {
			locks[lp.PilotID] = lp
		}
	}
	ret := make([]Entry, 0, len(lb.Current))
	for i, id := range lb.Current {
		e := Entry{
			Position: i + 1,
			PilotID:  id,
			Name:     snap.PilotName(id),
			Metrics:  map[string]null.Val[float64]{},
		}
		if g := sorter.GroupAt(groups, sorter.Path(id, groups, p)); g != nil {
			e.Group = g.Name
		}
		if lp, ok := locks[id]; ok {
			e.Locked = true
			e.Note = lp.Note
			e.Done = lp.Done
		}
		if lb.SplitIndex != nil && i >= *lb.SplitIndex {
			e.BelowCut = true
		}
		if prev, ok := lb.PositionChanges[id]; ok {
			e.PrevRank = &prev
		}
		for _, m := range metricsOfInterest {
			e.Metrics[m.String()] = p.Value(m, id)
		}
		ret = append(ret, e)
	}
	return ret
}

// PositionChanges maps pilots of current to their 1-based rank in previous,
// restricted to pilots whose rank changed. Pilots missing in either list
// are not included.
func PositionChanges(current, previous []string) map[string]int {
	prevRank := make(map[string]int, len(previous))
	for i, id := range previous {
		if _, ok := prevRank[id]; !ok {
			prevRank[id] = i + 1
		}
	}
	ret := map[string]int{}
	for i, id := range current {
		if r, ok := prevRank[id]; ok && r != i+1 {
			ret[id] = r
		}
	}
	return ret
}

// ApplyLocks pins pilots to their locked 1-based positions. Unlocked pilots
// keep their relative order and fill the remaining places. Locks for pilots
// not in ids are ignored; positions beyond the list end are clamped.
func ApplyLocks(ids []string, locks []kvconfig.LockedPosition) []string {
	if len(locks) == 0 || len(ids) == 0 {
		return ids
	}
	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	sorted := slices.Clone(locks)
	slices.SortStableFunc(sorted, func(a, b kvconfig.LockedPosition) int {
		return a.Position - b.Position
	})
	slots := make([]string, len(ids))
	placed := map[string]bool{}
	for _, lp := range sorted {
		if !present[lp.PilotID] || placed[lp.PilotID] {
			continue
		}
		idx := min(lp.Position-1, len(ids)-1)
		for idx < len(ids) && slots[idx] != "" {
			idx++
		}
		if idx == len(ids) {
			idx = min(lp.Position-1, len(ids)-1)
			for idx >= 0 && slots[idx] != "" {
				idx--
			}
		}
		slots[idx] = lp.PilotID
		placed[lp.PilotID] = true
	}
	next := 0
	for _, id := range ids {
		if placed[id] {
			continue
		}
		for slots[next] != "" {
			next++
		}
		slots[next] = id
	}
	return slots
}

func findClosestLap(c *calc.Calculator, window []*model.Race, target float64) *ClosestLap {
	var ret *ClosestLap
	for _, r := range window {
		for _, id := range c.Snapshot().RacePilots(r.ID) {
			lt, ok := c.ClosestLap(r.ID, id, target)
			if !ok {
				continue
			}
			delta := math.Abs(lt.Seconds - target)
			if ret == nil || delta < ret.Delta {
				ret = &ClosestLap{
					PilotID:   id,
					RaceID:    r.ID,
					LapNumber: lt.LapNumber,
					Seconds:   lt.Seconds,
					Target:    target,
					Delta:     delta,
				}
			}
		}
	}
	return ret
}
