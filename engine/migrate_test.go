package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/store"
	"github.com/peteb4ker/romper-sub005/testutil"
)

func schemaVersion(t *testing.T, s store.Store) int {
	t.Helper()
	var v int
	require.NoError(t, s.View(context.Background(), func(r store.Reader) error {
		v = r.SchemaVersion()
		return nil
	}))
	return v
}

func TestMigrate_CanonicalSpacing(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemory(store.Options{})
	defer db.Close()

	// Legacy stores kept raw slot numbers as positions.
	legacy := testutil.SeedBucket(t, db, kitA, 0, 1, 2)
	testutil.SeedBucket(t, db, kitB, 0)
	require.Equal(t, 0, schemaVersion(t, db))

	tracker := NewMigrationTracker()
	e, err := New(ctx, db, WithMigrationTracker(tracker))
	require.NoError(t, err)

	got, err := e.Bucket(ctx, kitA)
	require.NoError(t, err)
	assert.Equal(t, testutil.IDs(legacy), testutil.IDs(got))
	assert.Equal(t, []int64{100, 200, 300}, model.Positions(got))
	assert.Equal(t, []int64{100}, model.Positions(testutil.ReadBucket(t, db, kitB)))

	assert.Equal(t, SchemaVersion, schemaVersion(t, db))
	v, ok := tracker.Version(db.ID())
	assert.True(t, ok)
	assert.Equal(t, SchemaVersion, v)
}

func TestMigrate_TrackerChecksOncePerStore(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemory(store.Options{})
	defer db.Close()
	tracker := NewMigrationTracker()

	_, err := New(ctx, db, WithMigrationTracker(tracker))
	require.NoError(t, err)
	assert.True(t, tracker.Checked(db.ID()))

	// Rewind the schema behind the tracker's back.
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetSchemaVersion(0))
	require.NoError(t, tx.Commit())
	testutil.SeedBucket(t, db, kitA, 1, 2)

	_, err = New(ctx, db, WithMigrationTracker(tracker))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, model.Positions(testutil.ReadBucket(t, db, kitA)))

	// An isolated tracker checks again.
	_, err = New(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, model.Positions(testutil.ReadBucket(t, db, kitA)))

	tracker.Forget(db.ID())
	assert.False(t, tracker.Checked(db.ID()))
}

func TestMigrate_EmptyStore(t *testing.T) {
	db := store.NewMemory(store.Options{})
	defer db.Close()

	_, err := New(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, schemaVersion(t, db))
}
