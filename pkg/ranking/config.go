// Package ranking builds the sort trees used to rank pilots within races
// and rounds.
package ranking

import (
	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/sorter"
)

type (
	Group     = sorter.Group[calc.Provider]
	Criterion = sorter.Criterion[calc.Provider]
)

// Cond enumerates the membership conditions used by the sort trees.
type Cond int

const (
	// pilot reached the target lap count
	CondCompleted Cond = iota + 1
	CondIncomplete
	// pilot has a consecutive-laps window
	CondHasWindow
	CondNoWindow
)

func (c Cond) Holds(id string, p calc.Provider) bool {
	switch c {
	case CondCompleted:
		return completed(id, p)
	case CondIncomplete:
		return !completed(id, p)
	case CondHasWindow:
		return p.Value(calc.MetricConsecutive, id).IsValue()
	case CondNoWindow:
		return p.Value(calc.MetricConsecutive, id).IsNull()
	}
	return false
}

func (c Cond) String() string {
	switch c {
	case CondCompleted:
		return "completed"
	case CondIncomplete:
		return "incomplete"
	case CondHasWindow:
		return "hasWindow"
	case CondNoWindow:
		return "noWindow"
	}
	return "unknown"
}

func completed(id string, p calc.Provider) bool {
	return p.Value(calc.MetricFinishDetection, id).IsValue() ||
		p.Value(calc.MetricCompletionTime, id).IsValue()
}

// MetricCriterion reads the metric from the provider. Nulls always sort last.
func MetricCriterion(m calc.Metric, dir sorter.Direction) Criterion {
	return Criterion{
		Name:      m.String(),
		Direction: dir,
		Nulls:     sorter.NullsLast,
		Value: func(id string, p calc.Provider) null.Val[float64] {
			return p.Value(m, id)
		},
	}
}

func asc(m calc.Metric) Criterion  { return MetricCriterion(m, sorter.Asc) }
func desc(m calc.Metric) Criterion { return MetricCriterion(m, sorter.Desc) }

func fallbackGroup() Group {
	return Group{
		Name:     "fallback",
		Criteria: []Criterion{asc(calc.MetricChannelSlot)},
	}
}

// RaceGroups is the sort tree for first-to-finish rounds. A pilot who
// reached the target lap count always ranks before one who did not.
func RaceGroups() []Group {
	return []Group{
		{
			Name:      "completed",
			Condition: CondCompleted,
			Criteria: []Criterion{
				asc(calc.MetricFinishElapsed),
				asc(calc.MetricFinishDetection),
				asc(calc.MetricCompletionTime),
				asc(calc.MetricBestLap),
				asc(calc.MetricFirstDetection),
				desc(calc.MetricCompletedLaps),
				asc(calc.MetricChannelSlot),
			},
		},
		{
			Name:      "incomplete",
			Condition: CondIncomplete,
			Criteria: []Criterion{
				desc(calc.MetricCompletedLaps),
				asc(calc.MetricTotalTime),
				asc(calc.MetricFirstDetection),
				asc(calc.MetricChannelSlot),
			},
		},
		fallbackGroup(),
	}
}

// RoundGroups is the sort tree for time trial, practice and qualifying
// rounds, ranked by the fastest consecutive-laps window.
func RoundGroups() []Group {
	return []Group{
		{
			Name:      "withWindow",
			Condition: CondHasWindow,
			Criteria: []Criterion{
				asc(calc.MetricConsecutive),
				asc(calc.MetricBestLap),
				asc(calc.MetricFinishElapsed),
				desc(calc.MetricCompletedLaps),
				asc(calc.MetricFirstDetection),
				asc(calc.MetricChannelSlot),
			},
		},
		{
			Name:      "withoutWindow",
			Condition: CondNoWindow,
			Criteria: []Criterion{
				desc(calc.MetricCompletedLaps),
				asc(calc.MetricBestLap),
				asc(calc.MetricFirstDetection),
				asc(calc.MetricChannelSlot),
			},
		},
		fallbackGroup(),
	}
}

// GroupsFor selects the sort tree by round type. Unknown types are ranked
// like time trials.
func GroupsFor(t model.EventType) []Group {
	if t.IsRace() {
		return RaceGroups()
	}
	return RoundGroups()
}
