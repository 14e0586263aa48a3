package ranking

import (
	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/sorter"
)

// Entry is one line of a ranked race result.
//
//nolint:tagliatelle // client compatibility
type Entry struct {
	Position int               `json:"position"`
	PilotID  string            `json:"pilotId"`
	Group    string            `json:"group"`
	Metrics  calc.PilotMetrics `json:"metrics"`
}

// RoundType returns the event type used to rank the race. Races without a
// known round are ranked as races when they have a target lap count.
func RoundType(snap *model.Snapshot, race *model.Race) model.EventType {
	if round, ok := snap.RoundOf(race); ok && round.EventType != "" {
		return round.EventType
	}
	if race.TargetLaps > 0 {
		return model.EventTypeRace
	}
	return model.EventTypeTimeTrial
}

// RankRace returns the pilot ids of a race in finishing order.
func RankRace(c *calc.Calculator, raceID string) []string {
	race, ok := c.Snapshot().Race(raceID)
	if !ok {
		return nil
	}
	return sorter.Sort(
		c.Snapshot().RacePilots(raceID),
		GroupsFor(RoundType(c.Snapshot(), race)),
		c.ForRace(raceID))
}

// RaceResult returns the ranked pilots of a race together with their metrics
// and the group that decided their rank.
func RaceResult(c *calc.Calculator, raceID string) []Entry {
	race, ok := c.Snapshot().Race(raceID)
	if !ok {
		return nil
	}
	groups := GroupsFor(RoundType(c.Snapshot(), race))
	p := c.ForRace(raceID)
	ids := sorter.Sort(c.Snapshot().RacePilots(raceID), groups, p)
	ret := make([]Entry, 0, len(ids))
	for i, id := range ids {
		e := Entry{
			Position: i + 1,
			PilotID:  id,
			Metrics:  c.PilotMetrics(raceID, id),
		}
		if g := sorter.GroupAt(groups, sorter.Path(id, groups, p)); g != nil {
			e.Group = g.Name
		}
		ret = append(ret, e)
	}
	return ret
}
