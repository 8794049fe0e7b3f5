package romper

import (
	"log/slog"
	"time"

	"github.com/peteb4ker/romper-sub005/codec"
	"github.com/peteb4ker/romper-sub005/engine"
	"github.com/peteb4ker/romper-sub005/internal/fs"
	"github.com/peteb4ker/romper-sub005/internal/wal"
	"github.com/peteb4ker/romper-sub005/resource"
	"github.com/peteb4ker/romper-sub005/snapshot"
	"github.com/peteb4ker/romper-sub005/store"
)

// Durability controls when a commit to a local database is acknowledged.
type Durability int

const (
	// DurabilitySync acknowledges a commit after its journal record is
	// fsynced. This is the default.
	DurabilitySync Durability = iota
	// DurabilityAsync acknowledges once the record reaches the OS page cache.
	DurabilityAsync
)

func (d Durability) wal() wal.Durability {
	if d == DurabilityAsync {
		return wal.DurabilityAsync
	}
	return wal.DurabilitySync
}

type options struct {
	codec            codec.Codec
	durability       Durability
	fileSystem       fs.FileSystem
	busyTimeout      time.Duration
	historyLimit     int
	migrations       *engine.MigrationTracker
	metricsCollector MetricsCollector
	logger           *Logger
	compression      snapshot.Compression
	resources        resource.Config
}

// Option configures Open.
type Option func(*options)

// WithCodec configures the codec used for payloads in the journal and in
// backups. If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithDurability configures journal durability for local databases.
// It has no effect on in-memory databases.
func WithDurability(d Durability) Option {
	return func(o *options) {
		o.durability = d
	}
}

// WithFileSystem replaces the file system backing a local database.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fileSystem = fsys
	}
}

// WithBusyTimeout bounds how long a mutation waits for another writer before
// failing with ErrBusy. Zero waits until the context is done.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.busyTimeout = d
	}
}

// WithHistoryLimit sets how many operations can be undone. Values <= 0
// select history.DefaultLimit.
func WithHistoryLimit(n int) Option {
	return func(o *options) {
		o.historyLimit = n
	}
}

// WithMigrationTracker shares one tracker between databases opened in the
// same process, so each store's schema is checked once per run.
func WithMigrationTracker(t *engine.MigrationTracker) Option {
	return func(o *options) {
		o.migrations = t
	}
}

// WithBackupCompression selects how backup blobs are compressed.
func WithBackupCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceConfig bounds the workers, buffer memory and IO rate used by
// backups and restores.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &romper.BasicMetricsCollector{}
//	db, _ := romper.Open(ctx, romper.Memory(), romper.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("ops: %d, avg latency: %dns\n", stats.OperationCount, stats.OperationAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
//	logger := romper.NewJSONLogger(slog.LevelInfo)
//	db, _ := romper.Open(ctx, romper.Local("./data"), romper.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	def := store.DefaultOptions()
	o := options{
		codec:            codec.Default,
		durability:       DurabilitySync,
		fileSystem:       def.FileSystem,
		busyTimeout:      def.BusyTimeout,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      snapshot.CompressionZstd,
		resources:        resource.DefaultConfig(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.fileSystem == nil {
		o.fileSystem = def.FileSystem
	}
	if o.migrations == nil {
		o.migrations = engine.NewMigrationTracker()
	}
	return o
}

func (o options) storeOptions() store.Options {
	return store.Options{
		BusyTimeout: o.busyTimeout,
		Durability:  o.durability.wal(),
		Codec:       o.codec,
		FileSystem:  o.fileSystem,
		Logger:      o.logger.Logger,
	}
}
