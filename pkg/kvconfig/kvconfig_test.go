package kvconfig

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/fpv-racedash/testsupport/basedata"
)

func intPtr(i int) *int { return &i }

func TestParseSplitIndex(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int
	}{
		{"number", "4", intPtr(4)},
		{"zero", "0", intPtr(0)},
		{"float integral", "3.0", intPtr(3)},
		{"fraction", "3.5", nil},
		{"negative", "-1", nil},
		{"string", "abc", nil},
		{"quoted", `"4"`, nil},
		{"empty", "", nil},
		{"object", `{"a":1}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSplitIndex(tt.raw))
		})
	}
}

func TestParseCurrentOrder(t *testing.T) {
	got := ParseCurrentOrder(`{"order": 7}`)
	if assert.NotNil(t, got) {
		assert.Equal(t, 7, *got.Order)
		assert.Empty(t, got.SourceID)
	}
	got = ParseCurrentOrder(`{"sourceId": "src-r3"}`)
	if assert.NotNil(t, got) {
		assert.Nil(t, got.Order)
		assert.Equal(t, "src-r3", got.SourceID)
	}
	assert.Nil(t, ParseCurrentOrder(`{}`))
	assert.Nil(t, ParseCurrentOrder(`7`))
	assert.Nil(t, ParseCurrentOrder(`{"order":`))
}

func TestParseLockedPositions(t *testing.T) {
	raw := `[
		{"pilotId":"p1","position":1,"note":"winner","done":true},
		{"pilotId":"p2","position":0},
		{"position":3},
		"junk",
		{"pilotId":"p4","position":4}
	]`
	want := []LockedPosition{
		{PilotID: "p1", Position: 1, Note: "winner", Done: true},
		{PilotID: "p4", Position: 4},
	}
	if diff := cmp.Diff(want, ParseLockedPositions(raw)); diff != "" {
		t.Errorf("ParseLockedPositions() mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, ParseLockedPositions(`{"pilotId":"p1"}`))
	assert.Nil(t, ParseLockedPositions(`[`))
}

func TestParseNextRaceOverrides(t *testing.T) {
	raw := `[{"startSourceId":"a","endSourceId":"b","label":"Break"},{"endSourceId":"z","label":"Done"},1]`
	want := []NextRaceOverride{
		{StartSourceID: "a", EndSourceID: "b", Label: "Break"},
		{EndSourceID: "z", Label: "Done"},
	}
	if diff := cmp.Diff(want, ParseNextRaceOverrides(raw)); diff != "" {
		t.Errorf("ParseNextRaceOverrides() mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, ParseNextRaceOverrides(`"x"`))
}

func TestParseClosestLapTarget(t *testing.T) {
	got := ParseClosestLapTarget("20.5")
	if assert.NotNil(t, got) {
		assert.InDelta(t, 20.5, *got, 1e-9)
	}
	assert.Nil(t, ParseClosestLapTarget("0"))
	assert.Nil(t, ParseClosestLapTarget("-3"))
	assert.Nil(t, ParseClosestLapTarget("fast"))
}

func TestFromSnapshot(t *testing.T) {
	snap := basedata.NewEvent().
		KV(NamespaceRace, KeyCurrentOrder, `{"order":2}`).
		KV(NamespaceLeaderboard, KeySplitIndex, "abc").
		KV(NamespaceBracket, KeyBracketAnchorOrder, "5").
		Snapshot()
	cfg := FromSnapshot(snap)
	if assert.NotNil(t, cfg.CurrentOrder) {
		assert.Equal(t, intPtr(2), cfg.CurrentOrder.Order)
	}
	assert.Nil(t, cfg.SplitIndex)
	assert.Equal(t, intPtr(5), cfg.BracketAnchor)
	assert.Nil(t, cfg.ClosestLapTarget)
	assert.Empty(t, cfg.LockedPositions)
}
