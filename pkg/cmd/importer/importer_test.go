package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/repository/event"
	"github.com/mpapenbr/fpv-racedash/pkg/repository/records"
	"github.com/mpapenbr/fpv-racedash/testsupport/basedata"
	"github.com/mpapenbr/fpv-racedash/testsupport/testdb"
)

func TestStore(t *testing.T) {
	pool := testdb.InitTestDb()
	ctx := context.Background()
	b := basedata.NewEvent().Pilots("a", "b").Round("r1", model.EventTypeRace)
	b.Race("race1", "r1", 1, 2, "a", "b").Laps("a", 20)

	require.NoError(t, Store(ctx, pool, "import", "Import test", b.Records()))
	e, err := event.LoadByKey(ctx, pool, "import")
	require.NoError(t, err)
	assert.Equal(t, "Import test", e.Name)

	b.Race("race2", "r1", 2, 2, "a", "b")
	require.NoError(t, Store(ctx, pool, "import", "ignored", b.Records()))
	again, err := event.LoadByKey(ctx, pool, "import")
	require.NoError(t, err)
	assert.Equal(t, e.ID, again.ID)
	assert.Equal(t, "Import test", again.Name)

	got, err := records.Load(ctx, pool, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Races, 2)
	assert.Len(t, got.Laps, 1)
}
