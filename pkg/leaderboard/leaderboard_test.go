//nolint:funlen // ok for tests
package leaderboard

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	gtAssert "gotest.tools/v3/assert"

	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/kvconfig"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/testsupport/basedata"
)

// two qualifying races of the same round, a third race in another round
func qualifyingEvent() *basedata.EventBuilder {
	e := basedata.NewEvent().Pilots("a", "b", "c").
		Round("q", model.EventTypeQualifying).
		Round("m", model.EventTypeRace)
	e.Race("r1", "q", 1, 0, "a", "b").
		Laps("a", 20, 20, 20).
		Laps("b", 19, 19, 19).
		Completed()
	e.Race("r2", "q", 2, 0, "c", "a").
		Laps("c", 18, 18, 18).
		Laps("a", 17, 17, 17).
		Completed()
	e.Race("r3", "m", 3, 3, "a", "b", "c")
	return e
}

func assemble(e *basedata.EventBuilder) *Leaderboard {
	snap := e.Snapshot()
	cfg := kvconfig.FromSnapshot(snap)
	return Assemble(calc.New(snap), &cfg)
}

func TestAssemble(t *testing.T) {
	lb := assemble(qualifyingEvent())

	assert.Equal(t, "r2", lb.CurrentRaceID)
	assert.Equal(t, "q", lb.RoundID)
	assert.Equal(t, []string{"r1", "r2"}, lb.WindowRaceIDs)
	assert.Equal(t, []string{"a", "c", "b"}, lb.Current)
	assert.Equal(t, []string{"b", "a"}, lb.Previous)
	if diff := cmp.Diff(map[string]int{"a": 2, "b": 1}, lb.PositionChanges); diff != "" {
		t.Errorf("PositionChanges mismatch (-want +got):\n%s", diff)
	}
	gtAssert.Equal(t, len(lb.Entries), 3)
	assert.Equal(t, "withWindow", lb.Entries[0].Group)
	assert.InDelta(t, 51.0, lb.Entries[0].Metrics["consecutive"].GetOrZero(), 1e-9)
	assert.Equal(t, 2, *lb.Entries[0].PrevRank)
	assert.Nil(t, lb.Entries[1].PrevRank)
	if assert.NotNil(t, lb.NextRace) {
		assert.Equal(t, "r3", lb.NextRace.RaceID)
		assert.Equal(t, "m - Race 3", lb.NextRace.Label)
	}
	assert.Nil(t, lb.ClosestLap)
}

func TestAssembleKVFeatures(t *testing.T) {
	e := qualifyingEvent().
		KV(kvconfig.NamespaceLeaderboard, kvconfig.KeySplitIndex, "2").
		KV(kvconfig.NamespaceLeaderboard, kvconfig.KeyLockedPositions,
			`[{"pilotId":"b","position":1,"note":"wildcard"}]`).
		KV(kvconfig.NamespaceLeaderboard, kvconfig.KeyClosestLapTarget, "18.2")
	lb := assemble(e)

	assert.Equal(t, []string{"b", "a", "c"}, lb.Current)
	assert.True(t, lb.Entries[0].Locked)
	assert.Equal(t, "wildcard", lb.Entries[0].Note)
	assert.False(t, lb.Entries[1].BelowCut)
	assert.True(t, lb.Entries[2].BelowCut)
	if assert.NotNil(t, lb.ClosestLap) {
		assert.Equal(t, "c", lb.ClosestLap.PilotID)
		assert.Equal(t, "r2", lb.ClosestLap.RaceID)
		assert.InDelta(t, 0.2, lb.ClosestLap.Delta, 1e-9)
	}
}

func TestAssembleIgnoresInvalidatedCurrentOrder(t *testing.T) {
	e := qualifyingEvent().
		KV(kvconfig.NamespaceRace, kvconfig.KeyCurrentOrder, `{"order":5}`)
	e.Race("r5", "q", 5, 0, "a").Invalid().Completed()
	lb := assemble(e)

	assert.Equal(t, "r2", lb.CurrentRaceID)
	assert.Equal(t, []string{"r1", "r2"}, lb.WindowRaceIDs)
	assert.Equal(t, []string{"b", "a"}, lb.Previous)
}

func TestAssembleWithoutRaces(t *testing.T) {
	lb := assemble(basedata.NewEvent().Pilots("a"))
	assert.Empty(t, lb.CurrentRaceID)
	assert.Empty(t, lb.Current)
	assert.Empty(t, lb.PositionChanges)
	if assert.NotNil(t, lb.NextRace) {
		assert.True(t, lb.NextRace.NoFurtherRaces)
	}
}

func TestCurrentRace(t *testing.T) {
	order := 1
	invalidOrder := 5
	tests := []struct {
		name  string
		build func() *basedata.EventBuilder
		co    *kvconfig.CurrentOrder
		want  string
	}{
		{"last completed", qualifyingEvent, nil, "r2"},
		{"explicit order", qualifyingEvent, &kvconfig.CurrentOrder{Order: &order}, "r1"},
		{"source id", qualifyingEvent, &kvconfig.CurrentOrder{SourceID: "src-r3"}, "r3"},
		{"unknown source id", qualifyingEvent, &kvconfig.CurrentOrder{SourceID: "x"}, "r2"},
		{"invalidated explicit order", func() *basedata.EventBuilder {
			e := qualifyingEvent()
			e.Race("r5", "q", 5, 0, "a").Invalid().Completed()
			return e
		}, &kvconfig.CurrentOrder{Order: &invalidOrder}, "r2"},
		{"invalidated source id", func() *basedata.EventBuilder {
			e := qualifyingEvent()
			e.Race("r5", "q", 5, 0, "a").Invalid().Completed()
			return e
		}, &kvconfig.CurrentOrder{SourceID: "src-r5"}, "r2"},
		{"active race", func() *basedata.EventBuilder {
			e := qualifyingEvent()
			e.Race("r4", "m", 4, 3, "a").Started(5000)
			return e
		}, nil, "r4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := CurrentRace(tt.build().Snapshot(), tt.co)
			assert.True(t, ok)
			assert.Equal(t, tt.want, r.ID)
		})
	}
}

func TestWindowSkipsInvalidRaces(t *testing.T) {
	e := qualifyingEvent()
	e.Race("r0", "q", 0, 0, "b").Invalid().Completed()
	snap := e.Snapshot()
	r2, _ := snap.Race("r2")
	ids := []string{}
	for _, r := range Window(snap, r2) {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"r1", "r2"}, ids)
}

func TestPositionChanges(t *testing.T) {
	tests := []struct {
		name     string
		current  []string
		previous []string
		want     map[string]int
	}{
		{"no previous", []string{"a", "b"}, nil, map[string]int{}},
		{"unchanged", []string{"a", "b"}, []string{"a", "b"}, map[string]int{}},
		{"swap", []string{"b", "a"}, []string{"a", "b"}, map[string]int{"a": 1, "b": 2}},
		{"new pilot", []string{"c", "a"}, []string{"a"}, map[string]int{"a": 1}},
		{"dropped pilot", []string{"b"}, []string{"a", "b"}, map[string]int{"b": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PositionChanges(tt.current, tt.previous))
		})
	}
}

func TestApplyLocks(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	tests := []struct {
		name  string
		locks []kvconfig.LockedPosition
		want  []string
	}{
		{"none", nil, ids},
		{"two locks", []kvconfig.LockedPosition{
			{PilotID: "a", Position: 3}, {PilotID: "d", Position: 1},
		}, []string{"d", "b", "a", "c"}},
		{"beyond end", []kvconfig.LockedPosition{{PilotID: "b", Position: 10}}, []string{"a", "c", "d", "b"}},
		{"unknown pilot", []kvconfig.LockedPosition{{PilotID: "x", Position: 1}}, ids},
		{"same position", []kvconfig.LockedPosition{
			{PilotID: "c", Position: 1}, {PilotID: "d", Position: 1},
		}, []string{"c", "d", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyLocks(ids, tt.locks))
		})
	}
}

func overrideEvent() *model.Snapshot {
	e := basedata.NewEvent().Pilots("a").Round("m", model.EventTypeRace)
	e.Race("r1", "m", 1, 3, "a").Completed()
	e.Race("r2", "m", 2, 3, "a").Completed()
	e.Race("r3", "m", 3, 3, "a")
	e.Race("r4", "m", 4, 3, "a")
	return e.Snapshot()
}

func TestValidateOverrides(t *testing.T) {
	snap := overrideEvent()
	tests := []struct {
		name      string
		overrides []kvconfig.NextRaceOverride
		want      []string
	}{
		{"valid", []kvconfig.NextRaceOverride{
			{StartSourceID: "src-r1", EndSourceID: "src-r2", Label: "Lunch"},
			{EndSourceID: "src-r4", Label: "Done"},
		}, []string{}},
		{"empty label and overlap", []kvconfig.NextRaceOverride{
			{StartSourceID: "src-r1", EndSourceID: "src-r2", Label: "Lunch"},
			{StartSourceID: "src-r2", EndSourceID: "src-r3", Label: " "},
		}, []string{"entry 2: label is empty", "entries 1 and 2 overlap"}},
		{"reversed", []kvconfig.NextRaceOverride{
			{StartSourceID: "src-r3", EndSourceID: "src-r1", Label: "x"},
		}, []string{`entry 1: start race "src-r3" comes after end race "src-r1"`}},
		{"unknown", []kvconfig.NextRaceOverride{
			{StartSourceID: "nope", Label: "x"},
		}, []string{`entry 1: unknown start race "nope"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateOverrides(snap, tt.overrides))
		})
	}
}

func TestResolveNextRace(t *testing.T) {
	snap := overrideEvent()
	r2, _ := snap.Race("r2")
	r4, _ := snap.Race("r4")

	got := resolveNextRace(snap, r2, nil)
	assert.Equal(t, &NextRace{RaceID: "r3", RaceOrder: 3, Label: "m - Race 3"}, got)

	got = resolveNextRace(snap, r2, []kvconfig.NextRaceOverride{
		{StartSourceID: "src-r2", EndSourceID: "src-r2", Label: "Lunch break"},
	})
	assert.Equal(t, &NextRace{RaceID: "r3", RaceOrder: 3, Label: "Lunch break", Overridden: true}, got)

	got = resolveNextRace(snap, r2, []kvconfig.NextRaceOverride{
		{EndSourceID: "src-r2", Label: "Thanks for flying"},
	})
	assert.True(t, got.NoFurtherRaces)
	assert.Equal(t, "Thanks for flying", got.Label)

	got = resolveNextRace(snap, r4, nil)
	assert.True(t, got.NoFurtherRaces)
}
