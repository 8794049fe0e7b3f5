package romper_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteb4ker/romper-sub005"
	"github.com/peteb4ker/romper-sub005/blobstore"
	"github.com/peteb4ker/romper-sub005/snapshot"
)

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	metrics := &romper.BasicMetricsCollector{}
	db := openMemory(t, romper.WithMetricsCollector(metrics), romper.WithBackupCompression(snapshot.CompressionLZ4))
	bs := blobstore.NewMemoryStore()

	kick, snare := romper.Bucket("808", 1), romper.Bucket("808", 2)
	k := seed(t, db, kick, 3)
	s := seed(t, db, snare, 2)

	m, err := db.Backup(ctx, bs)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.ID)
	assert.Equal(t, 5, m.Records())
	assert.Equal(t, snapshot.CompressionLZ4, m.Compression)
	assert.Equal(t, db.ID(), m.Source)

	// Diverge from the backup: move across buckets and add a new bucket.
	_, err = db.MoveAcrossBuckets(ctx, kick, 0, snare, 0, romper.ModeInsert)
	require.NoError(t, err)
	seed(t, db, romper.Bucket("909", 1), 1)

	_, err = db.RestoreBackup(ctx, bs, 0)
	require.NoError(t, err)

	keys, err := db.Buckets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []romper.BucketKey{kick, snare}, keys)

	got, err := db.Bucket(ctx, kick)
	require.NoError(t, err)
	assert.Equal(t, k, got)
	got, err = db.Bucket(ctx, snare)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	// The restore is undoable like any other mutation.
	_, err = db.Undo(ctx)
	require.NoError(t, err)
	keys, err = db.Buckets(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.BackupCount)
	assert.Equal(t, int64(1), stats.RestoreCount)
	assert.Zero(t, stats.RestoreErrors)
}

func TestBackupVersions(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	bs := blobstore.NewMemoryStore()
	key := romper.Bucket("A0", 1)

	seed(t, db, key, 1)
	first, err := db.Backup(ctx, bs)
	require.NoError(t, err)
	seed(t, db, key, 2)
	second, err := db.Backup(ctx, bs)
	require.NoError(t, err)

	list, err := romper.ListBackups(ctx, bs)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	_, err = db.RestoreBackup(ctx, bs, first.ID)
	require.NoError(t, err)
	samples, err := db.Bucket(ctx, key)
	require.NoError(t, err)
	assert.Len(t, samples, 1)

	require.NoError(t, romper.DeleteBackup(ctx, bs, first.ID))
	_, err = db.RestoreBackup(ctx, bs, first.ID)
	assert.ErrorIs(t, err, romper.ErrNoBackup)
}

func TestRestoreBackupErrors(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	bs := blobstore.NewMemoryStore()

	_, err := db.RestoreBackup(ctx, bs, 0)
	require.ErrorIs(t, err, romper.ErrNoBackup)

	key := romper.Bucket("A0", 1)
	seed(t, db, key, 2)
	m, err := db.Backup(ctx, bs)
	require.NoError(t, err)

	require.NoError(t, bs.Put(ctx, m.Buckets[0].Path, []byte("not a bucket")))
	_, err = db.RestoreBackup(ctx, bs, m.ID)
	require.ErrorIs(t, err, romper.ErrCorruptBackup)

	samples, err := db.Bucket(ctx, key)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
}
