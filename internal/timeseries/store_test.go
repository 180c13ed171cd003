package timeseries

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/gridxlate/internal/core/db"
	"github.com/solatis/gridxlate/internal/types"
)

// newTestDB opens a migrated sqlite database in a temp file. In-memory
// sqlite is per connection, and transfers run on their own connection.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "gridxlate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.MigrateUp(context.Background(), database, nil))
	return database
}

func newTestStore(t *testing.T, strategy string) (*Store, *sqlx.DB) {
	t.Helper()

	database := newTestDB(t)
	store, err := NewStore(database, WithStrategy(strategy))
	require.NoError(t, err)
	return store, database
}

func addSeries(t *testing.T, s *Store, owner types.OwnerID, series types.TimeSeriesID, category string) int64 {
	t.Helper()

	id, err := s.AddAssociation(context.Background(), Association{
		TimeSeriesUUID: series,
		TimeSeriesType: "SingleTimeSeries",
		Name:           "max_active_power",
		OwnerUUID:      owner,
		OwnerType:      "ThermalStandard",
		OwnerCategory:  category,
		Features:       `{"scenario":"base"}`,
		Resolution:     "PT1H",
		Length:         8760,
		Units:          "MW",
	})
	require.NoError(t, err)
	return id
}

func TestResolveCapability(t *testing.T) {
	tests := []struct {
		driver   string
		strategy string
		want     Capability
		wantErr  bool
	}{
		{db.DriverSQLite, StrategyAuto, CapabilityAttach, false},
		{db.DriverSQLite, "", CapabilityAttach, false},
		{db.DriverSQLite, StrategyManual, CapabilityManual, false},
		{db.DriverSQLite, StrategyAttach, CapabilityAttach, false},
		{db.DriverPostgres, StrategyAuto, CapabilityManual, false},
		{db.DriverPostgres, StrategyManual, CapabilityManual, false},
		{db.DriverPostgres, StrategyAttach, CapabilityManual, true},
		{db.DriverSQLite, "bulk", CapabilityManual, true},
	}

	for _, tt := range tests {
		t.Run(tt.driver+"/"+tt.strategy, func(t *testing.T) {
			got, err := ResolveCapability(tt.driver, tt.strategy)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddAssociationNormalizesIdentifiers(t *testing.T) {
	store, _ := newTestStore(t, StrategyAuto)
	ctx := context.Background()

	owner := "6F9619FF-8B86-D011-B42D-00CF4FC964FF"
	series := types.NewTimeSeriesID()
	addSeries(t, store, types.OwnerID(owner), series, "Component")

	rows, err := store.Associations(ctx, owner)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.OwnerID("6f9619ff-8b86-d011-b42d-00cf4fc964ff"), rows[0].OwnerUUID)
	assert.Equal(t, series, rows[0].TimeSeriesUUID)
	assert.Equal(t, int64(8760), rows[0].Length)
}

func TestAddAssociationValidation(t *testing.T) {
	store, _ := newTestStore(t, StrategyAuto)
	ctx := context.Background()

	_, err := store.AddAssociation(ctx, Association{
		OwnerUUID:      "not-a-uuid",
		TimeSeriesUUID: types.NewTimeSeriesID(),
		OwnerCategory:  "Component",
	})
	assert.ErrorIs(t, err, types.ErrInvalidOwnerID)

	_, err = store.AddAssociation(ctx, Association{
		OwnerUUID:      types.NewOwnerID(),
		TimeSeriesUUID: types.NewTimeSeriesID(),
	})
	assert.ErrorIs(t, err, types.ErrMissingValue)
}

func TestAssociationsCacheInvalidatedOnInsert(t *testing.T) {
	store, _ := newTestStore(t, StrategyAuto)
	ctx := context.Background()
	owner := types.NewOwnerID()

	addSeries(t, store, owner, types.NewTimeSeriesID(), "Component")
	rows, err := store.Associations(ctx, string(owner))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	addSeries(t, store, owner, types.NewTimeSeriesID(), "Component")
	rows, err = store.Associations(ctx, string(owner))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestChildrenAndReferences(t *testing.T) {
	store, _ := newTestStore(t, StrategyAuto)
	ctx := context.Background()
	parent, child := types.NewOwnerID(), types.NewOwnerID()

	_, err := store.AddChild(ctx, ChildAssociation{
		ParentUUID: parent, ParentType: "Area",
		ChildUUID: child, ChildType: "ACBus",
	})
	require.NoError(t, err)

	children, err := store.Children(ctx, string(parent))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child, children[0].ChildUUID)

	refs, err := store.ChildReferences(ctx, string(child))
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, parent, refs[0].ParentUUID)
}
