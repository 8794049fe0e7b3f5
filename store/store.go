package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/peteb4ker/romper-sub005/codec"
	"github.com/peteb4ker/romper-sub005/internal/fs"
	"github.com/peteb4ker/romper-sub005/internal/wal"
	"github.com/peteb4ker/romper-sub005/model"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrExists is returned when inserting a record whose id is taken.
	ErrExists = errors.New("record already exists")
	// ErrPositionConflict is returned by Commit when two records of one
	// bucket share a position.
	ErrPositionConflict = errors.New("position conflict")
	// ErrInvalidPosition is returned for negative positions.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrBusy is returned when the write section could not be acquired
	// within the busy timeout.
	ErrBusy = errors.New("store is busy")
	// ErrClosed is returned by every operation on a closed store.
	ErrClosed = errors.New("store is closed")
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction already committed or rolled back")
)

// Reader is a consistent read-only view of the store.
type Reader interface {
	// Bucket returns the records of a bucket ordered by position.
	Bucket(key model.BucketKey) []model.Sample
	// Get returns the record with the given id.
	Get(id model.SampleID) (model.Sample, error)
	// Buckets returns every non-empty bucket in key order.
	Buckets() []model.BucketKey
	// Vacancies returns the vacated slots of a bucket as the positions
	// their records held, in ascending order.
	Vacancies(key model.BucketKey) []int64
	// Len returns the total number of records.
	Len() int
	// SchemaVersion returns the persisted schema version.
	SchemaVersion() int
}

// Tx is an exclusive write transaction. Reads observe the transaction's own
// writes.
type Tx interface {
	Reader
	Insert(s model.Sample) error
	Move(id model.SampleID, bucket model.BucketKey, position int64) error
	Delete(id model.SampleID) (model.Sample, error)
	// Vacate marks position in bucket as an empty display slot.
	Vacate(bucket model.BucketKey, position int64) error
	// Fill drops a vacated slot. Filling a slot that is not vacant is a
	// no-op.
	Fill(bucket model.BucketKey, position int64) error
	SetSchemaVersion(v int) error
	Commit() error
	Rollback() error
}

// Store is the contract the transactional layer consumes.
type Store interface {
	// Begin acquires the exclusive write section and starts a transaction.
	Begin(ctx context.Context) (Tx, error)
	// View runs fn against the last committed state.
	View(ctx context.Context, fn func(Reader) error) error
	// ID identifies the store.
	ID() string
	Close() error
}

// Options configures a store.
type Options struct {
	// BusyTimeout bounds how long Begin waits for the write section.
	// Zero waits until ctx is done.
	BusyTimeout time.Duration

	// Durability applies to durable stores only.
	Durability wal.Durability

	// Codec encodes payloads in the journal.
	Codec codec.Codec

	// FileSystem backs durable stores. Defaults to the local file system.
	FileSystem fs.FileSystem

	// Logger receives recovery and compaction messages.
	Logger *slog.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		BusyTimeout: 5 * time.Second,
		Durability:  wal.DurabilitySync,
		Codec:       codec.Default,
		FileSystem:  fs.Default,
		Logger:      slog.New(slog.DiscardHandler),
	}
}

func (o *Options) normalize() {
	def := DefaultOptions()
	if o.Codec == nil {
		o.Codec = def.Codec
	}
	if o.FileSystem == nil {
		o.FileSystem = def.FileSystem
	}
	if o.Logger == nil {
		o.Logger = def.Logger
	}
}
