//nolint:funlen,errcheck // ok for this test code
package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/repository/event"
	"github.com/mpapenbr/fpv-racedash/pkg/repository/records"
	"github.com/mpapenbr/fpv-racedash/testsupport/basedata"
	"github.com/mpapenbr/fpv-racedash/testsupport/testdb"
)

func TestPollInterval(t *testing.T) {
	active := time.Millisecond
	idle := time.Second
	tests := []struct {
		name string
		snap *model.Snapshot
		want time.Duration
	}{
		{name: "no snapshot", snap: nil, want: idle},
		{
			name: "nothing running",
			snap: basedata.NewEvent().Pilots("a").Round("r1", model.EventTypeRace).
				Race("race1", "r1", 1, 3, "a").Completed().Event().Snapshot(),
			want: idle,
		},
		{
			name: "race running",
			snap: basedata.NewEvent().Pilots("a").Round("r1", model.EventTypeRace).
				Race("race1", "r1", 1, 3, "a").Started(1000).Event().Snapshot(),
			want: active,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pollInterval(tt.snap, active, idle))
		})
	}
}

func TestPollerPublishesChanges(t *testing.T) {
	pool := testdb.InitTestDb()
	ctx := context.Background()
	e := &event.Event{Key: "poll-test", Name: "Poll test"}
	recs := basedata.NewEvent().Pilots("a", "b").Round("r1", model.EventTypeRace).
		Race("race1", "r1", 1, 2, "a", "b").Started(1000).Laps("a", 20, 21).Event().
		Records()
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := event.Create(ctx, tx, e); err != nil {
			return err
		}
		return records.Replace(ctx, tx, e.ID, recs)
	})
	require.NoError(t, err)

	src, err := New(ctx, pool, "poll-test",
		WithActiveInterval(10*time.Millisecond))
	require.NoError(t, err)
	defer src.Close()
	assert.Len(t, src.Current().Laps("race1"), 2)

	ch := src.Subscribe()
	defer src.CancelSubscription(ch)
	require.NoError(t, records.PutKV(ctx, pool, e.ID, model.KVEntry{
		Namespace: "leaderboard", Key: "splitIndex", Value: "3",
	}))
	select {
	case snap := <-ch:
		v, ok := snap.KV("leaderboard", "splitIndex")
		assert.True(t, ok)
		assert.Equal(t, "3", v)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot published")
	}
}

func TestNewUnknownEvent(t *testing.T) {
	pool := testdb.InitTestDb()
	_, err := New(context.Background(), pool, "does-not-exist")
	assert.ErrorIs(t, err, event.ErrNotFound)
}
