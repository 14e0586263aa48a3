package engine

import (
	"time"

	"github.com/mpapenbr/fpv-racedash/pkg/bracket"
	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/finals"
	"github.com/mpapenbr/fpv-racedash/pkg/kvconfig"
	"github.com/mpapenbr/fpv-racedash/pkg/leaderboard"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/ranking"
)

//nolint:tagliatelle // client compatibility
type (
	// State is everything derived from one snapshot.
	State struct {
		Version     uint64                   `json:"version"`
		ComputedAt  time.Time                `json:"computedAt"`
		Leaderboard *leaderboard.Leaderboard `json:"leaderboard"`
		CurrentRace *RaceState               `json:"currentRace,omitempty"`
		Bracket     *BracketState            `json:"bracket,omitempty"`
		Finals      *finals.State            `json:"finals"`

		calc *calc.Calculator
		kv   kvconfig.Config
	}
	RaceState struct {
		RaceID    string          `json:"raceId"`
		RaceOrder int             `json:"raceOrder"`
		Status    string          `json:"status"`
		Results   []ranking.Entry `json:"results"`
	}
	BracketState struct {
		Name   string              `json:"name"`
		Anchor int                 `json:"anchor"`
		Nodes  []bracket.NodeState `json:"nodes"`
	}

	// Settings are the engine constants not taken from the snapshot.
	Settings struct {
		ConsecutiveLaps int
		BracketAnchor   int
		Finals          finals.Config
	}
)

func DefaultSettings() Settings {
	return Settings{
		ConsecutiveLaps: calc.DefaultConsecutiveLaps,
		BracketAnchor:   bracket.DefaultAnchor,
		Finals:          finals.DefaultConfig(),
	}
}

// Snapshot returns the records the state was computed from.
func (s *State) Snapshot() *model.Snapshot {
	return s.calc.Snapshot()
}

// Calculator returns the memoizing calculator bound to the snapshot. It is
// safe for concurrent use.
func (s *State) Calculator() *calc.Calculator {
	return s.calc
}

func (s *State) KV() kvconfig.Config {
	return s.kv
}

// Compute derives the complete state of a snapshot. f may be nil if no
// bracket is configured.
func Compute(snap *model.Snapshot, f *bracket.Format, settings Settings) *State {
	c := calc.New(snap, calc.WithConsecutiveLaps(settings.ConsecutiveLaps))
	kv := kvconfig.FromSnapshot(snap)
	ret := &State{
		ComputedAt:  time.Now(),
		calc:        c,
		kv:          kv,
		Leaderboard: leaderboard.Assemble(c, &kv),
	}
	if ret.Leaderboard.CurrentRaceID != "" {
		race, _ := snap.Race(ret.Leaderboard.CurrentRaceID)
		ret.CurrentRace = &RaceState{
			RaceID:    race.ID,
			RaceOrder: race.RaceOrder,
			Status:    race.Status().String(),
			Results:   ranking.RaceResult(c, race.ID),
		}
	}
	anchor := settings.BracketAnchor
	if kv.BracketAnchor != nil {
		anchor = *kv.BracketAnchor
	}
	if f != nil {
		ret.Bracket = &BracketState{
			Name:   f.Name,
			Anchor: anchor,
			Nodes:  bracket.Resolve(c, f, anchor),
		}
	}
	ret.Finals = finals.Compute(c, f, anchor, settings.Finals)
	return ret
}
