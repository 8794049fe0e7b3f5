package romper

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics.
// Implement this interface to integrate with monitoring systems; the
// prommetrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordOperation is called after each mutation, undo and redo
	// included. err is nil if the operation committed.
	RecordOperation(op string, duration time.Duration, err error)

	// RecordRepositioned is called with the number of records other than
	// the primary one whose position changed.
	RecordRepositioned(op string, n int)

	// RecordRedistribution is called once per bucket that was respaced or
	// compacted.
	RecordRedistribution(op string)

	// RecordRollback is called when an operation aborted after its
	// transaction began.
	RecordRollback(op string)

	RecordUndo(err error)
	RecordRedo(err error)

	RecordBackup(records int, duration time.Duration, err error)
	RecordRestoreBackup(records int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOperation(string, time.Duration, error)  {}
func (NoopMetricsCollector) RecordRepositioned(string, int)                {}
func (NoopMetricsCollector) RecordRedistribution(string)                   {}
func (NoopMetricsCollector) RecordRollback(string)                         {}
func (NoopMetricsCollector) RecordUndo(error)                              {}
func (NoopMetricsCollector) RecordRedo(error)                              {}
func (NoopMetricsCollector) RecordBackup(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordRestoreBackup(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	OperationCount      atomic.Int64
	OperationErrors     atomic.Int64
	OperationTotalNanos atomic.Int64
	Repositioned        atomic.Int64
	Redistributions     atomic.Int64
	Rollbacks           atomic.Int64
	UndoCount           atomic.Int64
	UndoErrors          atomic.Int64
	RedoCount           atomic.Int64
	RedoErrors          atomic.Int64
	BackupCount         atomic.Int64
	BackupErrors        atomic.Int64
	RestoreCount        atomic.Int64
	RestoreErrors       atomic.Int64
}

// RecordOperation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOperation(_ string, duration time.Duration, err error) {
	b.OperationCount.Add(1)
	b.OperationTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.OperationErrors.Add(1)
	}
}

// RecordRepositioned implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRepositioned(_ string, n int) {
	b.Repositioned.Add(int64(n))
}

// RecordRedistribution implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRedistribution(string) {
	b.Redistributions.Add(1)
}

// RecordRollback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRollback(string) {
	b.Rollbacks.Add(1)
}

// RecordUndo implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUndo(err error) {
	b.UndoCount.Add(1)
	if err != nil {
		b.UndoErrors.Add(1)
	}
}

// RecordRedo implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRedo(err error) {
	b.RedoCount.Add(1)
	if err != nil {
		b.RedoErrors.Add(1)
	}
}

// RecordBackup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBackup(_ int, _ time.Duration, err error) {
	b.BackupCount.Add(1)
	if err != nil {
		b.BackupErrors.Add(1)
	}
}

// RecordRestoreBackup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestoreBackup(_ int, _ time.Duration, err error) {
	b.RestoreCount.Add(1)
	if err != nil {
		b.RestoreErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		OperationCount:    b.OperationCount.Load(),
		OperationErrors:   b.OperationErrors.Load(),
		OperationAvgNanos: b.avgOperationNanos(),
		Repositioned:      b.Repositioned.Load(),
		Redistributions:   b.Redistributions.Load(),
		Rollbacks:         b.Rollbacks.Load(),
		UndoCount:         b.UndoCount.Load(),
		UndoErrors:        b.UndoErrors.Load(),
		RedoCount:         b.RedoCount.Load(),
		RedoErrors:        b.RedoErrors.Load(),
		BackupCount:       b.BackupCount.Load(),
		BackupErrors:      b.BackupErrors.Load(),
		RestoreCount:      b.RestoreCount.Load(),
		RestoreErrors:     b.RestoreErrors.Load(),
	}
}

func (b *BasicMetricsCollector) avgOperationNanos() int64 {
	count := b.OperationCount.Load()
	if count == 0 {
		return 0
	}
	return b.OperationTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	OperationCount    int64
	OperationErrors   int64
	OperationAvgNanos int64
	Repositioned      int64
	Redistributions   int64
	Rollbacks         int64
	UndoCount         int64
	UndoErrors        int64
	RedoCount         int64
	RedoErrors        int64
	BackupCount       int64
	BackupErrors      int64
	RestoreCount      int64
	RestoreErrors     int64
}
