package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleRecords() Records {
	return Records{
		Pilots: []Pilot{{ID: "p1", Name: "Alpha"}, {ID: "p2", Name: "Bravo"}},
		Races: []Race{
			{ID: "r2", RaceOrder: 2, Valid: true, SourceID: "s2"},
			{ID: "r1", RaceOrder: 1, Valid: true, SourceID: "s1", PilotChannels: []PilotChannel{
				{ID: "pc1", PilotID: "p2"}, {ID: "pc2", PilotID: "p1"},
			}},
		},
		Laps: []Lap{
			{ID: "l2", Race: "r1", LapNumber: 2},
			{ID: "l1", Race: "r1", LapNumber: 1},
		},
		Detections: []Detection{
			{ID: "d1", Race: "r1", Pilot: "p1"},
			{ID: "d2", Race: "r1", Pilot: "p3"},
		},
		KV: []KVEntry{{Namespace: "leaderboard", Key: "splitIndex", Value: "3"}},
	}
}

func TestSnapshotAccessors(t *testing.T) {
	s := NewSnapshot(sampleRecords())

	assert.Equal(t, []string{"r1", "r2"}, []string{s.Races()[0].ID, s.Races()[1].ID})
	r, ok := s.RaceByOrder(2)
	assert.True(t, ok)
	assert.Equal(t, "r2", r.ID)
	_, ok = s.RaceByOrder(3)
	assert.False(t, ok)

	r, ok = s.RaceBySourceID("s1")
	assert.True(t, ok)
	assert.Equal(t, "r1", r.ID)

	laps := s.Laps("r1")
	assert.Equal(t, 1, laps[0].LapNumber)
	assert.Equal(t, 2, laps[1].LapNumber)

	v, ok := s.KV("leaderboard", "splitIndex")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	assert.Equal(t, []string{"p2", "p1", "p3"}, s.RacePilots("r1"))
	assert.Equal(t, "Alpha", s.PilotName("p1"))
	assert.Equal(t, "p3", s.PilotName("p3"))
}

func TestRaceStatus(t *testing.T) {
	tests := []struct {
		name string
		race Race
		want RaceStatus
	}{
		{"scheduled", Race{Valid: true}, RaceScheduled},
		{"zero start", Race{Valid: true, Start: "0001-01-01 00:00:00.000Z"}, RaceScheduled},
		{"active", Race{Valid: true, Start: "1000"}, RaceActive},
		{"completed", Race{Valid: true, Start: "1000", End: "2024-05-01T10:00:00Z"}, RaceCompleted},
		{"invalid", Race{Valid: false, Start: "1000", End: "2000"}, RaceInvalidated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.race.Status())
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	ms, ok := ParseTimestamp("2024-05-01 10:00:00.250Z")
	assert.True(t, ok)
	assert.Equal(t, int64(1714557600250), ms)

	_, ok = ParseTimestamp("")
	assert.False(t, ok)
	_, ok = ParseTimestamp("garbage")
	assert.False(t, ok)
}
