package romper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/peteb4ker/romper-sub005/engine"
	"github.com/peteb4ker/romper-sub005/history"
	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/resource"
	"github.com/peteb4ker/romper-sub005/store"
	"github.com/peteb4ker/romper-sub005/txn"
)

type (
	Sample       = model.Sample
	SampleID     = model.SampleID
	BucketKey    = model.BucketKey
	BucketState  = model.BucketState
	Payload      = model.Payload
	Repositioned = model.Repositioned
	Result       = engine.Result
	Mode         = engine.Mode
	Scope        = engine.Scope
)

const (
	ModeInsert    = engine.ModeInsert
	ModeOverwrite = engine.ModeOverwrite

	ScopeBuckets = engine.ScopeBuckets
	ScopeAll     = engine.ScopeAll
)

// Bucket returns the key of a kit voice.
func Bucket(kit string, voice int) BucketKey { return model.Bucket(kit, voice) }

// Location says where a database keeps its state.
type Location struct {
	dir string
}

// Local stores the database in dir, creating it if needed.
func Local(dir string) Location { return Location{dir: dir} }

// Memory keeps the database in process memory. Nothing survives Close.
func Memory() Location { return Location{} }

// DB is an open sample database. It is safe for concurrent use; mutations
// are applied one at a time.
type DB struct {
	store     *store.DB
	engine    *engine.Engine
	history   *history.History
	resources *resource.Controller
	opts      options
	logger    *Logger
	metrics   MetricsCollector

	// writer serializes a mutation with its history record, so undo
	// entries are stacked in commit order.
	writer *semaphore.Weighted

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens the database at loc and brings its schema up to date.
//
//	db, err := romper.Open(ctx, romper.Local("./data"))
//	if err != nil { ... }
//	defer db.Close()
//	res, err := db.MoveWithinBucket(ctx, romper.Bucket("808", 1), 0, 3)
func Open(ctx context.Context, loc Location, opts ...Option) (*DB, error) {
	o := applyOptions(opts)

	var s *store.DB
	if loc.dir == "" {
		s = store.NewMemory(o.storeOptions())
	} else {
		var err error
		s, err = store.Open(loc.dir, o.storeOptions())
		if err != nil {
			return nil, translateError(err)
		}
	}

	logger := o.logger.WithStore(s.ID())
	eng, err := engine.New(ctx, s,
		engine.WithLogger(logger.Logger),
		engine.WithMigrationTracker(o.migrations))
	if err != nil {
		_ = s.Close()
		return nil, translateError(err)
	}

	db := &DB{
		store:     s,
		engine:    eng,
		history:   history.New(o.historyLimit),
		resources: resource.NewController(o.resources),
		opts:      o,
		logger:    logger,
		metrics:   o.metricsCollector,
		writer:    semaphore.NewWeighted(1),
	}
	logger.Info("database opened", "dir", loc.dir)
	return db, nil
}

// Close releases the database. Operations after Close return ErrClosed.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		db.closed.Store(true)
		db.closeErr = db.store.Close()
		db.history.Clear()
	})
	return db.closeErr
}

// ID identifies the underlying store.
func (db *DB) ID() string { return db.store.ID() }

// Bucket returns the records of a bucket in display order.
func (db *DB) Bucket(ctx context.Context, key BucketKey) ([]Sample, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	out, err := db.engine.Bucket(ctx, key)
	return out, translateError(err)
}

// Buckets returns every non-empty bucket.
func (db *DB) Buckets(ctx context.Context) ([]BucketKey, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	out, err := db.engine.Buckets(ctx)
	return out, translateError(err)
}

// Get returns a record by id.
func (db *DB) Get(ctx context.Context, id SampleID) (Sample, error) {
	if db.closed.Load() {
		return Sample{}, ErrClosed
	}
	out, err := db.engine.Get(ctx, id)
	return out, translateError(err)
}

// Snapshot returns the state of every bucket.
func (db *DB) Snapshot(ctx context.Context) ([]BucketState, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	out, err := db.engine.Snapshot(ctx)
	return out, translateError(err)
}

// Compact rewrites the journal of a local database as a single record.
func (db *DB) Compact(ctx context.Context) error {
	if err := db.lock(ctx); err != nil {
		return err
	}
	defer db.writer.Release(1)
	return translateError(db.store.Compact())
}

// HistoryLen returns how many operations can be undone and redone.
func (db *DB) HistoryLen() (undo, redo int) { return db.history.Len() }

func (db *DB) lock(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := db.writer.Acquire(ctx, 1); err != nil {
		return err
	}
	if db.closed.Load() {
		db.writer.Release(1)
		return ErrClosed
	}
	return nil
}

// apply runs one mutation and records it for undo.
func (db *DB) apply(ctx context.Context, op string, fn func() (*engine.Result, error)) (*Result, error) {
	if err := db.lock(ctx); err != nil {
		return nil, err
	}
	defer db.writer.Release(1)

	start := time.Now()
	res, err := fn()
	db.observe(ctx, op, res, err, time.Since(start))
	if err != nil {
		return nil, translateError(err)
	}
	if !res.NoOp {
		db.history.Record(history.Entry{Op: res.Op, At: start, Before: res.Before, After: res.After})
	}
	return res, nil
}

func (db *DB) observe(ctx context.Context, op string, res *engine.Result, err error, d time.Duration) {
	db.metrics.RecordOperation(op, d, err)
	db.logger.LogOperation(ctx, op, res, err)
	if err != nil {
		var te *txn.Error
		if errors.As(err, &te) && te.Phase != txn.PhaseBegin {
			db.metrics.RecordRollback(op)
		}
		return
	}
	db.metrics.RecordRepositioned(op, len(res.Repositioned))
	for range res.Redistributed {
		db.metrics.RecordRedistribution(op)
	}
}
