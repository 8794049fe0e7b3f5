package romper

import (
	"context"
	"time"

	"github.com/peteb4ker/romper-sub005/blobstore"
	"github.com/peteb4ker/romper-sub005/engine"
	"github.com/peteb4ker/romper-sub005/history"
	"github.com/peteb4ker/romper-sub005/snapshot"
)

func (db *DB) snapshotOptions() snapshot.Options {
	return snapshot.Options{
		Codec:       db.opts.codec,
		Compression: db.opts.compression,
		Resources:   db.resources,
		Logger:      db.logger.Logger,
	}
}

// Backup writes every bucket to bs as a new backup version and returns its
// manifest. The state is read from one consistent view, so concurrent
// mutations are either fully included or not at all.
func (db *DB) Backup(ctx context.Context, bs blobstore.BlobStore) (*snapshot.Manifest, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()

	states, err := db.engine.Snapshot(ctx)
	if err != nil {
		err = translateError(err)
		db.metrics.RecordBackup(0, time.Since(start), err)
		db.logger.LogBackup(ctx, "backup", 0, 0, err)
		return nil, err
	}

	src := snapshot.Source{ID: db.store.ID(), SchemaVersion: engine.SchemaVersion}
	m, err := snapshot.Write(ctx, bs, states, src, db.snapshotOptions())
	if err != nil {
		err = translateError(err)
		db.metrics.RecordBackup(0, time.Since(start), err)
		db.logger.LogBackup(ctx, "backup", 0, 0, err)
		return nil, err
	}

	db.metrics.RecordBackup(m.Records(), time.Since(start), nil)
	db.logger.LogBackup(ctx, "backup", m.ID, m.Records(), nil)
	return m, nil
}

// RestoreBackup replaces the whole database with backup id from bs. An id of
// 0 selects the latest backup. The restore is recorded in the history and
// can be undone.
func (db *DB) RestoreBackup(ctx context.Context, bs blobstore.BlobStore, id uint64) (*Result, error) {
	if err := db.lock(ctx); err != nil {
		return nil, err
	}
	defer db.writer.Release(1)
	start := time.Now()

	m, states, err := snapshot.Read(ctx, bs, id, db.snapshotOptions())
	if err != nil {
		err = translateError(err)
		db.metrics.RecordRestoreBackup(0, time.Since(start), err)
		db.logger.LogBackup(ctx, "restore", id, 0, err)
		return nil, err
	}

	res, err := db.engine.Restore(ctx, states, engine.ScopeAll)
	db.observe(ctx, engine.OpRestore, res, err, time.Since(start))
	if err != nil {
		err = translateError(err)
		db.metrics.RecordRestoreBackup(0, time.Since(start), err)
		db.logger.LogBackup(ctx, "restore", m.ID, 0, err)
		return nil, err
	}
	if !res.NoOp {
		db.history.Record(history.Entry{Op: res.Op, At: start, Before: res.Before, After: res.After})
	}

	db.metrics.RecordRestoreBackup(m.Records(), time.Since(start), nil)
	db.logger.LogBackup(ctx, "restore", m.ID, m.Records(), nil)
	return res, nil
}

// ListBackups returns the manifests found in bs, oldest first.
func ListBackups(ctx context.Context, bs blobstore.BlobStore) ([]*snapshot.Manifest, error) {
	return snapshot.List(ctx, bs)
}

// DeleteBackup removes backup id and its bucket blobs from bs.
func DeleteBackup(ctx context.Context, bs blobstore.BlobStore, id uint64) error {
	return translateError(snapshot.Delete(ctx, bs, id))
}
