package rank

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/fpv-racedash/pkg/config"
	"github.com/mpapenbr/fpv-racedash/pkg/finals"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/testsupport/basedata"
)

func writeSnapshot(t *testing.T) string {
	t.Helper()
	r := basedata.NewEvent().
		Pilot("a", "Alice").Pilot("b", "Bob").
		Round("r1", model.EventTypeRace).
		Race("race1", "r1", 1, 2, "a", "b").
		Laps("a", 20, 21).Laps("b", 19, 20).Completed().Event().
		Records()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRank(t *testing.T) {
	config.SnapshotFile = writeSnapshot(t)
	raceIDs = []string{"race1"}
	bracketName = "none"
	defer func() { raceIDs = nil; bracketName = "" }()

	var buf bytes.Buffer
	require.NoError(t, rank(&buf))
	out := buf.String()
	assert.Contains(t, out, "Leaderboard (race race1, round r1)")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "Race race1")
	assert.Contains(t, out, "Finals: No bracket configured")
}

func TestRankUnknownRace(t *testing.T) {
	config.SnapshotFile = writeSnapshot(t)
	raceIDs = []string{"nope"}
	defer func() { raceIDs = nil }()
	var buf bytes.Buffer
	assert.Error(t, rank(&buf))
}

func TestRenderFinals(t *testing.T) {
	out := RenderFinals(&finals.State{
		Enabled: true,
		Participants: []finals.Participant{
			{PilotID: "a", Name: "Alice", Wins: 2, TotalPoints: 260, BestOfScore: 200,
				HeatPoints: []int{100, 100, 60}, Position: 1, Champion: true},
			{PilotID: "b", Name: "Bob", TotalPoints: 260, BestOfScore: 180,
				HeatPoints: []int{80, 80, 100}, Position: 2},
		},
	})
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "100 100 60")
	assert.Contains(t, out, "180")
}
