package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/peteb4ker/romper-sub005/internal/flock"
	"github.com/peteb4ker/romper-sub005/internal/wal"
	"github.com/peteb4ker/romper-sub005/model"
)

// DB implements Store. The zero value is not usable; see NewMemory and Open.
type DB struct {
	id   string
	opts Options

	current atomic.Pointer[state]
	writer  *semaphore.Weighted
	closed  atomic.Bool

	// journal and lock are nil for memory stores.
	journal *wal.WAL
	lock    *flock.Lock
	dir     string
	lsn     uint64

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*DB)(nil)

// NewMemory returns a volatile store.
func NewMemory(opts Options) *DB {
	opts.normalize()
	db := &DB{
		id:     "mem:" + uuid.NewString(),
		opts:   opts,
		writer: semaphore.NewWeighted(1),
	}
	db.current.Store(newState())
	return db
}

// ID identifies the store. Durable stores use their directory.
func (db *DB) ID() string { return db.id }

// Begin acquires the exclusive write section and starts a transaction.
func (db *DB) Begin(ctx context.Context) (Tx, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	if err := db.acquire(ctx); err != nil {
		return nil, err
	}
	if db.closed.Load() {
		db.writer.Release(1)
		return nil, ErrClosed
	}
	return &tx{
		db:    db,
		state: db.current.Load().copy(),
		dirty: make(map[model.BucketKey]struct{}),
	}, nil
}

func (db *DB) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitCtx := ctx
	if db.opts.BusyTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, db.opts.BusyTimeout)
		defer cancel()
	}
	if err := db.writer.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: waited %s", ErrBusy, db.opts.BusyTimeout)
		}
		return err
	}
	return nil
}

// View runs fn against the last committed state.
func (db *DB) View(ctx context.Context, fn func(Reader) error) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(db.current.Load())
}

// Close waits for the running transaction, if any, and releases the store.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		db.closed.Store(true)
		// Wait for the active writer to finish.
		_ = db.writer.Acquire(context.Background(), 1)
		defer db.writer.Release(1)

		if db.journal != nil {
			db.closeErr = db.journal.Close()
		}
		if err := db.lock.Release(); err != nil && db.closeErr == nil {
			db.closeErr = err
		}
	})
	return db.closeErr
}

func (db *DB) publish(tx *tx) error {
	if db.journal != nil && len(tx.ops) > 0 {
		rec := &wal.Record{
			LSN:  db.lsn + 1,
			Type: wal.RecordTypeCommit,
			Ops:  tx.ops,
		}
		if err := db.journal.Append(rec); err != nil {
			return fmt.Errorf("append commit record: %w", err)
		}
		db.lsn = rec.LSN
	}
	db.current.Store(tx.state)
	return nil
}

type tx struct {
	db    *DB
	state *state
	dirty map[model.BucketKey]struct{}
	ops   []wal.Op
	done  bool
}

func (t *tx) Bucket(key model.BucketKey) []model.Sample {
	return t.state.Bucket(key)
}

func (t *tx) Get(id model.SampleID) (model.Sample, error) {
	return t.state.Get(id)
}

func (t *tx) Buckets() []model.BucketKey { return t.state.Buckets() }

func (t *tx) Vacancies(key model.BucketKey) []int64 { return t.state.Vacancies(key) }

func (t *tx) Len() int { return t.state.Len() }

func (t *tx) SchemaVersion() int { return t.state.SchemaVersion() }

func (t *tx) Insert(s model.Sample) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.state.insert(s); err != nil {
		return err
	}
	t.dirty[s.Bucket] = struct{}{}
	if t.db.journal != nil {
		payload, err := encodePayload(t.db.opts.Codec, s.Payload)
		if err != nil {
			return err
		}
		t.ops = append(t.ops, wal.Op{
			Kind:     wal.OpInsert,
			ID:       s.ID,
			Kit:      s.Bucket.Kit,
			Voice:    int32(s.Bucket.Voice),
			Position: s.Position,
			Payload:  payload,
		})
	}
	return nil
}

func (t *tx) Move(id model.SampleID, bucket model.BucketKey, position int64) error {
	if t.done {
		return ErrTxDone
	}
	old, err := t.state.move(id, bucket, position)
	if err != nil {
		return err
	}
	t.dirty[old.Bucket] = struct{}{}
	t.dirty[bucket] = struct{}{}
	if t.db.journal != nil {
		t.ops = append(t.ops, wal.Op{
			Kind:     wal.OpMove,
			ID:       id,
			Kit:      bucket.Kit,
			Voice:    int32(bucket.Voice),
			Position: position,
		})
	}
	return nil
}

func (t *tx) Delete(id model.SampleID) (model.Sample, error) {
	if t.done {
		return model.Sample{}, ErrTxDone
	}
	old, err := t.state.delete(id)
	if err != nil {
		return model.Sample{}, err
	}
	if t.db.journal != nil {
		t.ops = append(t.ops, wal.Op{Kind: wal.OpDelete, ID: id})
	}
	return old, nil
}

func (t *tx) Vacate(bucket model.BucketKey, position int64) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.state.vacate(bucket, position); err != nil {
		return err
	}
	t.journalSlot(wal.OpVacate, bucket, position)
	return nil
}

func (t *tx) Fill(bucket model.BucketKey, position int64) error {
	if t.done {
		return ErrTxDone
	}
	if t.state.fill(bucket, position) {
		t.journalSlot(wal.OpFill, bucket, position)
	}
	return nil
}

func (t *tx) journalSlot(kind wal.OpKind, bucket model.BucketKey, position int64) {
	if t.db.journal != nil {
		t.ops = append(t.ops, wal.Op{
			Kind:     kind,
			Kit:      bucket.Kit,
			Voice:    int32(bucket.Voice),
			Position: position,
		})
	}
}

func (t *tx) SetSchemaVersion(v int) error {
	if t.done {
		return ErrTxDone
	}
	t.state.schema = v
	if t.db.journal != nil {
		t.ops = append(t.ops, wal.Op{Kind: wal.OpSchema, Position: int64(v)})
	}
	return nil
}

// Commit checks the deferred uniqueness constraint, persists the
// transaction and publishes the new state. The transaction is finished
// whether or not Commit succeeds.
func (t *tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	defer t.finish()

	for bucket := range t.dirty {
		if err := t.state.checkUnique(bucket); err != nil {
			return err
		}
	}
	return t.db.publish(t)
}

// Rollback discards the transaction.
func (t *tx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	t.ops = nil
	t.db.writer.Release(1)
}
