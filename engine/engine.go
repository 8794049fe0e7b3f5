package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/store"
	"github.com/peteb4ker/romper-sub005/txn"
)

// Operation names used in results, errors and logs.
const (
	OpMoveWithinBucket        = "move-within-bucket"
	OpMoveAcrossBuckets       = "move-across-buckets"
	OpDeleteAndCompact        = "delete-and-compact"
	OpDeleteWithoutCompaction = "delete-without-compaction"
	OpInsert                  = "insert"
	OpRestore                 = "restore"
	OpMigrate                 = "migrate"
)

// Result describes a completed operation.
type Result struct {
	Op string

	// Sample is the record the operation was about: the moved, inserted or
	// deleted record, in its final state.
	Sample model.Sample

	// Replaced is the destination record removed by a ModeOverwrite move.
	Replaced *model.Sample

	// Repositioned lists every other record whose position changed.
	Repositioned []model.Repositioned

	// Redistributed lists the buckets that were respaced or compacted.
	Redistributed []model.BucketKey

	// Before and After hold the full contents of every bucket the operation
	// touched, captured inside the transaction.
	Before []model.BucketState
	After  []model.BucketState

	// NoOp is set when the request was an identity transform and nothing
	// was written.
	NoOp bool
}

// Engine runs the mutation verbs against a store.
type Engine struct {
	mut        *txn.Mutator
	logger     *slog.Logger
	migrations *MigrationTracker
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMigrationTracker shares a tracker between engines. Without it every
// engine gets a private tracker.
func WithMigrationTracker(t *MigrationTracker) Option {
	return func(e *Engine) {
		if t != nil {
			e.migrations = t
		}
	}
}

// New returns an engine for s and brings the store's schema up to date.
func New(ctx context.Context, s store.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.migrations == nil {
		e.migrations = NewMigrationTracker()
	}
	e.mut = txn.New(s, e.logger)

	if err := e.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate store %s: %w", s.ID(), err)
	}
	return e, nil
}

// Bucket returns the records of a bucket in display order.
func (e *Engine) Bucket(ctx context.Context, key model.BucketKey) ([]model.Sample, error) {
	var out []model.Sample
	err := e.mut.View(ctx, func(r store.Reader) error {
		out = r.Bucket(key)
		return nil
	})
	return out, err
}

// Buckets returns every non-empty bucket.
func (e *Engine) Buckets(ctx context.Context) ([]model.BucketKey, error) {
	var out []model.BucketKey
	err := e.mut.View(ctx, func(r store.Reader) error {
		out = r.Buckets()
		return nil
	})
	return out, err
}

// Get returns a record by id.
func (e *Engine) Get(ctx context.Context, id model.SampleID) (model.Sample, error) {
	var out model.Sample
	err := e.mut.View(ctx, func(r store.Reader) error {
		var err error
		out, err = r.Get(id)
		return err
	})
	return out, err
}

// Snapshot returns the state of every bucket.
func (e *Engine) Snapshot(ctx context.Context) ([]model.BucketState, error) {
	var out []model.BucketState
	err := e.mut.View(ctx, func(r store.Reader) error {
		for _, key := range r.Buckets() {
			out = append(out, model.BucketState{Bucket: key, Samples: r.Bucket(key), Vacant: r.Vacancies(key)})
		}
		return nil
	})
	return out, err
}

// run executes body as one pipelined transaction.
func (e *Engine) run(ctx context.Context, op string, bucket model.BucketKey, attrs []any, body func(p *pipeline) error) (*Result, error) {
	start := e.now()
	p := &pipeline{
		res:          &Result{Op: op},
		before:       make(map[model.BucketKey][]model.Sample),
		vacantBefore: make(map[model.BucketKey][]int64),
	}

	err := e.mut.Run(ctx, op, func(tx store.Tx) error {
		p.tx = tx
		if err := body(p); err != nil {
			return err
		}
		p.enter(StageCommitting)
		if err := p.settle(); err != nil {
			return err
		}
		p.capture()
		return nil
	})
	if err != nil {
		e.logger.Error("operation aborted", append(attrs,
			"op", op, "kit", bucket.Kit, "voice", bucket.Voice,
			"stage", p.stage.String(), "error", err)...)
		return nil, &OpError{Op: op, Bucket: bucket, Stage: p.stage, Err: err}
	}

	p.stage = StageDone
	e.logger.Debug("operation done", append(attrs,
		"op", op, "kit", bucket.Kit, "voice", bucket.Voice,
		"repositioned", len(p.res.Repositioned),
		"redistributed", len(p.res.Redistributed),
		"noop", p.res.NoOp,
		"duration", e.now().Sub(start))...)
	return p.res, nil
}
