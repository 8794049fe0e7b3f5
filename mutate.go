package romper

import (
	"context"
	"time"

	"github.com/peteb4ker/romper-sub005/engine"
	"github.com/peteb4ker/romper-sub005/history"
)

// MoveWithinBucket moves the record at fromRank to toRank of the same
// bucket. The records in between shift by one rank.
func (db *DB) MoveWithinBucket(ctx context.Context, bucket BucketKey, fromRank, toRank int) (*Result, error) {
	return db.apply(ctx, engine.OpMoveWithinBucket, func() (*engine.Result, error) {
		return db.engine.MoveWithinBucket(ctx, bucket, fromRank, toRank)
	})
}

// MoveAcrossBuckets moves the record at fromRank of from to toRank of to.
// The source bucket is compacted. mode decides what happens to an occupied
// destination rank.
func (db *DB) MoveAcrossBuckets(ctx context.Context, from BucketKey, fromRank int, to BucketKey, toRank int, mode Mode) (*Result, error) {
	return db.apply(ctx, engine.OpMoveAcrossBuckets, func() (*engine.Result, error) {
		return db.engine.MoveAcrossBuckets(ctx, from, fromRank, to, toRank, mode)
	})
}

// DeleteAndCompact deletes the record at rank and closes the gap.
func (db *DB) DeleteAndCompact(ctx context.Context, bucket BucketKey, rank int) (*Result, error) {
	return db.apply(ctx, engine.OpDeleteAndCompact, func() (*engine.Result, error) {
		return db.engine.DeleteAndCompact(ctx, bucket, rank)
	})
}

// DeleteWithoutCompaction deletes the record at rank and leaves every other
// position untouched. It is meant for callers that restore exact positions
// themselves; ordinary deletes should use DeleteAndCompact.
func (db *DB) DeleteWithoutCompaction(ctx context.Context, bucket BucketKey, rank int) (*Result, error) {
	return db.apply(ctx, engine.OpDeleteWithoutCompaction, func() (*engine.Result, error) {
		return db.engine.DeleteWithoutCompaction(ctx, bucket, rank)
	})
}

// Insert creates a record at rank. The records at and after rank shift down.
func (db *DB) Insert(ctx context.Context, bucket BucketKey, rank int, payload Payload) (*Result, error) {
	return db.apply(ctx, engine.OpInsert, func() (*engine.Result, error) {
		return db.engine.Insert(ctx, bucket, rank, payload)
	})
}

// Append creates a record after the last one of bucket.
func (db *DB) Append(ctx context.Context, bucket BucketKey, payload Payload) (*Result, error) {
	return db.apply(ctx, engine.OpInsert, func() (*engine.Result, error) {
		return db.engine.Append(ctx, bucket, payload)
	})
}

// Restore replaces bucket contents with exact states. See engine.Restore.
func (db *DB) Restore(ctx context.Context, states []BucketState, scope Scope) (*Result, error) {
	return db.apply(ctx, engine.OpRestore, func() (*engine.Result, error) {
		return db.engine.Restore(ctx, states, scope)
	})
}

// Undo reverts the newest operation by restoring the buckets it touched to
// their prior state. A failed undo leaves the history unchanged.
func (db *DB) Undo(ctx context.Context) (*Result, error) {
	return db.step(ctx, "undo", db.history.Undo, func(e history.Entry) []BucketState { return e.Before }, db.metrics.RecordUndo)
}

// Redo reapplies the newest undone operation.
func (db *DB) Redo(ctx context.Context) (*Result, error) {
	return db.step(ctx, "redo", db.history.Redo, func(e history.Entry) []BucketState { return e.After }, db.metrics.RecordRedo)
}

func (db *DB) step(
	ctx context.Context,
	action string,
	pop func(func(history.Entry) error) (history.Entry, error),
	states func(history.Entry) []BucketState,
	record func(error),
) (*Result, error) {
	if err := db.lock(ctx); err != nil {
		return nil, err
	}
	defer db.writer.Release(1)

	var (
		res *engine.Result
		ran bool
	)
	start := time.Now()
	e, err := pop(func(e history.Entry) error {
		var err error
		ran = true
		res, err = db.engine.Restore(ctx, states(e), engine.ScopeBuckets)
		return err
	})
	if ran {
		db.observe(ctx, action, res, err, time.Since(start))
	}
	record(err)
	db.logger.LogHistory(ctx, action, e.Op, err)
	if err != nil {
		return nil, translateError(err)
	}
	return res, nil
}
