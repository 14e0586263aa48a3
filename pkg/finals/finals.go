// Package finals tracks the heats of the finals stage and decides when a
// champion is found.
package finals

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/bracket"
	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/ranking"
)

type Config struct {
	WinsRequired int
	MinHeats     int
	MaxHeats     int
	// Points per heat position, index 0 is the winner
	Points []int
	// number of pilots taken from each of the two bracket finals
	PoolPerFinal int
}

func DefaultConfig() Config {
	return Config{
		WinsRequired: 2,
		MinHeats:     3,
		MaxHeats:     7,
		Points:       []int{100, 80, 60, 40, 20, 10},
		PoolPerFinal: 3,
	}
}

//nolint:tagliatelle // client compatibility
type (
	HeatResult struct {
		PilotID  string `json:"pilotId"`
		Position int    `json:"position"`
		Points   int    `json:"points"`
	}
	Heat struct {
		Number    int          `json:"number"`
		RaceID    string       `json:"raceId"`
		RaceOrder int          `json:"raceOrder"`
		Status    string       `json:"status"`
		Results   []HeatResult `json:"results"`
	}
	Participant struct {
		PilotID       string `json:"pilotId"`
		Name          string `json:"name"`
		Wins          int    `json:"wins"`
		TotalPoints   int    `json:"totalPoints"`
		BestOfScore   int    `json:"bestOfScore"`
		HeatsCompeted int    `json:"heatsCompeted"`
		HeatPoints    []int  `json:"heatPoints"`
		Position      int    `json:"position"`
		Champion      bool   `json:"champion"`
	}
	State struct {
		Enabled           bool          `json:"enabled"`
		Finalists         []string      `json:"finalists"`
		Heats             []Heat        `json:"heats"`
		Participants      []Participant `json:"participants"`
		ChampionID        string        `json:"championId,omitempty"`
		IsComplete        bool          `json:"isComplete"`
		RequiresMoreHeats bool          `json:"requiresMoreHeats"`
		Message           string        `json:"message"`
	}
)

func disabled(msg string) *State {
	return &State{
		Finalists:    []string{},
		Heats:        []Heat{},
		Participants: []Participant{},
		Message:      msg,
	}
}

// Compute derives the finals state from the bracket finals and the races
// run after them.
//
//nolint:whitespace // editor/linter issue
func Compute(
	c *calc.Calculator,
	f *bracket.Format,
	anchor int,
	cfg Config,
) *State {
	if f == nil {
		return disabled("No bracket configured")
	}
	wOrder, rOrder, ok := f.FinalsNodes()
	if !ok {
		return disabled("Bracket has no finals")
	}
	snap := c.Snapshot()
	mapping := bracket.Map(snap.Races(), anchor, f)
	wf, wok := mapping[wOrder]
	rf, rok := mapping[rOrder]
	if !wok || !rok ||
		wf.Status() != model.RaceCompleted || rf.Status() != model.RaceCompleted {
		return disabled("Waiting for the bracket finals to complete")
	}
	pool := lo.Uniq(append(
		lo.Subset(ranking.RankRace(c, wf.ID), 0, uint(cfg.PoolPerFinal)),
		lo.Subset(ranking.RankRace(c, rf.ID), 0, uint(cfg.PoolPerFinal))...))
	if len(pool) < 2*cfg.PoolPerFinal {
		return disabled(fmt.Sprintf("Finals pool incomplete: %d of %d pilots",
			len(pool), 2*cfg.PoolPerFinal))
	}

	ret := &State{Enabled: true, Finalists: pool}
	ret.Heats = discoverHeats(c, pool, rf.RaceOrder, cfg)
	ret.Participants = aggregate(snap, pool, ret.Heats, cfg)
	completed := lo.CountBy(ret.Heats, func(h Heat) bool {
		return h.Status == model.RaceCompleted.String()
	})
	Rank(ret.Participants, cfg)
	// a champion may be known before the minimum heats are flown
	if len(ret.Participants) > 0 && ret.Participants[0].Wins >= cfg.WinsRequired {
		ret.Participants[0].Champion = true
		ret.ChampionID = ret.Participants[0].PilotID
	}
	ret.RequiresMoreHeats = RequiresMoreHeats(completed, ret.ChampionID != "", cfg)
	ret.IsComplete = !ret.RequiresMoreHeats
	ret.Message = message(completed, ret, snap, cfg)
	log.Default().Named("finals").Debug("computed",
		log.Int("heats", len(ret.Heats)), log.Int("completed", completed),
		log.String("champion", ret.ChampionID))
	return ret
}

// discoverHeats collects all valid races after the redemption final that
// contain at least one pool pilot.
func discoverHeats(c *calc.Calculator, pool []string, after int, cfg Config) []Heat {
	snap := c.Snapshot()
	ret := []Heat{}
	for _, r := range snap.Races() {
		if r.RaceOrder <= after || !r.Valid {
			continue
		}
		pilots := snap.RacePilots(r.ID)
		if !lo.Some(pilots, pool) {
			continue
		}
		h := Heat{
			Number:    len(ret) + 1,
			RaceID:    r.ID,
			RaceOrder: r.RaceOrder,
			Status:    r.Status().String(),
			Results:   []HeatResult{},
		}
		if r.Status() == model.RaceCompleted {
			for i, id := range ranking.RankRace(c, r.ID) {
				h.Results = append(h.Results, HeatResult{
					PilotID:  id,
					Position: i + 1,
					Points:   PointsFor(i+1, cfg.Points),
				})
			}
		}
		ret = append(ret, h)
	}
	return ret
}

func PointsFor(position int, table []int) int {
	if position < 1 || position > len(table) {
		return 0
	}
	return table[position-1]
}

func aggregate(snap *model.Snapshot, pool []string, heats []Heat, cfg Config) []Participant {
	ret := make([]Participant, 0, len(pool))
	for _, id := range pool {
		p := Participant{PilotID: id, Name: snap.PilotName(id), HeatPoints: []int{}}
		for _, h := range heats {
			res, ok := lo.Find(h.Results, func(r HeatResult) bool { return r.PilotID == id })
			if !ok {
				continue
			}
			p.HeatsCompeted++
			p.HeatPoints = append(p.HeatPoints, res.Points)
			p.TotalPoints += res.Points
			if res.Position == 1 {
				p.Wins++
			}
		}
		p.BestOfScore = BestOf(p.HeatPoints, cfg.MinHeats)
		ret = append(ret, p)
	}
	return ret
}

// BestOf drops the worst heat once at least minHeats heats were flown.
func BestOf(points []int, minHeats int) int {
	total := lo.Sum(points)
	if len(points) == 0 || len(points) < minHeats {
		return total
	}
	return total - slices.Min(points)
}

// Rank sorts participants: pilots with the required wins first, then by
// best-of score and total points. Positions are updated.
func Rank(ps []Participant, cfg Config) {
	slices.SortStableFunc(ps, func(a, b Participant) int {
		aw, bw := a.Wins >= cfg.WinsRequired, b.Wins >= cfg.WinsRequired
		switch {
		case aw && !bw:
			return -1
		case bw && !aw:
			return 1
		case a.BestOfScore != b.BestOfScore:
			return b.BestOfScore - a.BestOfScore
		}
		return b.TotalPoints - a.TotalPoints
	})
	for i := range ps {
		ps[i].Position = i + 1
	}
}

// RequiresMoreHeats decides whether another heat has to be flown.
func RequiresMoreHeats(completed int, hasChampion bool, cfg Config) bool {
	switch {
	case completed < cfg.MinHeats:
		return true
	case completed >= cfg.MaxHeats:
		return false
	}
	return !hasChampion
}

func message(completed int, s *State, snap *model.Snapshot, cfg Config) string {
	switch {
	case completed == 0:
		return "Finals not started"
	case completed < cfg.MinHeats:
		return fmt.Sprintf("Waiting for %d more heat(s)", cfg.MinHeats-completed)
	case s.ChampionID != "":
		return fmt.Sprintf("%s is champion with %d wins",
			snap.PilotName(s.ChampionID), s.Participants[0].Wins)
	case completed < cfg.MaxHeats:
		return fmt.Sprintf("In progress: waiting for a pilot to reach %d wins", cfg.WinsRequired)
	}
	return fmt.Sprintf("Maximum of %d heats reached", cfg.MaxHeats)
}
