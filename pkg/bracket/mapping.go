package bracket

import (
	"slices"

	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/ranking"
)

const DefaultAnchor = 1

//nolint:tagliatelle // client compatibility
type (
	Placement struct {
		Position    int     `json:"position"`
		PilotID     string  `json:"pilotId"`
		Name        string  `json:"name"`
		Destination *Target `json:"destination,omitempty"`
	}
	NodeState struct {
		Order      int         `json:"order"`
		Code       string      `json:"code"`
		Label      string      `json:"label"`
		Round      string      `json:"round"`
		Stage      Stage       `json:"stage"`
		RaceID     string      `json:"raceId,omitempty"`
		RaceOrder  int         `json:"raceOrder,omitempty"`
		Status     string      `json:"status"`
		Placements []Placement `json:"placements"`
	}
)

const statusUnmapped = "unmapped"

// Sequence returns the node orders in the order the races are run: the
// run sequence if present, otherwise all node orders ascending.
func (f *Format) Sequence() []int {
	if len(f.RunSequence) > 0 {
		return f.RunSequence
	}
	ret := make([]int, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		ret = append(ret, n.Order)
	}
	slices.Sort(ret)
	return ret
}

// Map associates node orders with races. The i-th node of the sequence is
// run as the race with race order anchor+i.
func Map(races []*model.Race, anchor int, f *Format) map[int]*model.Race {
	byOrder := make(map[int]*model.Race, len(races))
	for _, r := range races {
		if _, ok := byOrder[r.RaceOrder]; !ok {
			byOrder[r.RaceOrder] = r
		}
	}
	ret := map[int]*model.Race{}
	for i, order := range f.Sequence() {
		if r, ok := byOrder[anchor+i]; ok {
			ret[order] = r
		}
	}
	return ret
}

// Resolve computes the state of every node in sequence order. Pilots of
// started races are listed in ranked order; destinations are only set once
// the race is completed.
func Resolve(c *calc.Calculator, f *Format, anchor int) []NodeState {
	snap := c.Snapshot()
	mapping := Map(snap.Races(), anchor, f)
	ret := make([]NodeState, 0, len(f.Nodes))
	for _, order := range f.Sequence() {
		n, ok := f.Node(order)
		if !ok {
			continue
		}
		ns := NodeState{
			Order:      n.Order,
			Code:       n.Code,
			Label:      n.Label,
			Round:      n.Round,
			Stage:      n.Stage,
			Status:     statusUnmapped,
			Placements: []Placement{},
		}
		race, mapped := mapping[order]
		if mapped {
			ns.RaceID = race.ID
			ns.RaceOrder = race.RaceOrder
			ns.Status = race.Status().String()
			ns.Placements = placements(c, n, race)
		}
		ret = append(ret, ns)
	}
	return ret
}

func placements(c *calc.Calculator, n *Node, race *model.Race) []Placement {
	var ids []string
	switch race.Status() {
	case model.RaceActive, model.RaceCompleted:
		ids = ranking.RankRace(c, race.ID)
	default:
		ids = race.ScheduledPilots()
	}
	completed := race.Status() == model.RaceCompleted
	ret := make([]Placement, 0, len(ids))
	for i, id := range ids {
		p := Placement{Position: i + 1, PilotID: id, Name: c.Snapshot().PilotName(id)}
		if completed {
			if t, ok := n.Destination(i + 1); ok {
				p.Destination = &t
			}
		}
		ret = append(ret, p)
	}
	return ret
}

// RankedPilots returns the ranked pilots of the race mapped to a node.
// The second return value is false if the node has no completed race.
func RankedPilots(c *calc.Calculator, f *Format, anchor, order int) ([]string, bool) {
	race, ok := Map(c.Snapshot().Races(), anchor, f)[order]
	if !ok || race.Status() != model.RaceCompleted {
		return nil, false
	}
	return ranking.RankRace(c, race.ID), true
}
