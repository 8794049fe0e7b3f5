package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/semaphore"

	"github.com/peteb4ker/romper-sub005/internal/flock"
	"github.com/peteb4ker/romper-sub005/internal/wal"
	"github.com/peteb4ker/romper-sub005/model"
)

const (
	journalName        = "journal"
	compactJournalName = "journal.compact"
)

// Open opens or creates a durable store in dir.
//
// The journal is replayed into memory. A torn or corrupt record at the tail,
// left by a crash during append, is truncated away; every record before it
// is kept.
func Open(dir string, opts Options) (*DB, error) {
	opts.normalize()
	fsys := opts.FileSystem

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := fsys.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	lock, err := flock.Acquire(abs)
	if err != nil {
		return nil, fmt.Errorf("lock store directory: %w", err)
	}

	db := &DB{
		id:     abs,
		opts:   opts,
		writer: semaphore.NewWeighted(1),
		lock:   lock,
		dir:    abs,
	}

	j, err := wal.Open(fsys, filepath.Join(abs, journalName), wal.Options{Durability: opts.Durability})
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.journal = j

	st, err := db.replay()
	if err != nil {
		j.Close()
		lock.Release()
		return nil, err
	}
	db.current.Store(st)
	return db, nil
}

func (db *DB) replay() (*state, error) {
	r, err := db.journal.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	st := newState()
	records := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if torn(err) {
			db.opts.Logger.Warn("truncating torn journal tail",
				"offset", r.Offset(), "size", db.journal.Size(), "error", err)
			if terr := db.journal.Truncate(r.Offset()); terr != nil {
				return nil, fmt.Errorf("truncate journal: %w", terr)
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		if err := apply(st, rec); err != nil {
			return nil, fmt.Errorf("replay record %d: %w", rec.LSN, err)
		}
		db.lsn = rec.LSN
		records++
	}

	db.opts.Logger.Info("store opened", "dir", db.dir, "records", records, "samples", st.Len(), "schema", st.schema)
	return st, nil
}

// torn reports whether err marks the end of the intact journal. A record
// whose checksum fails or whose length cannot be valid was never fully
// written; no record is ever encoded above the size limit.
func torn(err error) bool {
	return errors.Is(err, wal.ErrShortRead) ||
		errors.Is(err, wal.ErrInvalidCRC) ||
		errors.Is(err, wal.ErrRecordTooLarge)
}

func apply(st *state, rec *wal.Record) error {
	for _, op := range rec.Ops {
		bucket := model.Bucket(op.Kit, int(op.Voice))
		switch op.Kind {
		case wal.OpInsert:
			payload, err := decodePayload(op.Payload)
			if err != nil {
				return err
			}
			if err := st.insert(model.Sample{
				ID:       op.ID,
				Bucket:   bucket,
				Position: op.Position,
				Payload:  payload,
			}); err != nil {
				return err
			}
		case wal.OpMove:
			if _, err := st.move(op.ID, bucket, op.Position); err != nil {
				return err
			}
		case wal.OpDelete:
			if _, err := st.delete(op.ID); err != nil {
				return err
			}
		case wal.OpVacate:
			if err := st.vacate(bucket, op.Position); err != nil {
				return err
			}
		case wal.OpFill:
			st.fill(bucket, op.Position)
		case wal.OpSchema:
			st.schema = int(op.Position)
		default:
			return fmt.Errorf("unknown journal op %s", op.Kind)
		}
	}
	return nil
}

// Compact rewrites the journal as a single record holding the current state.
// It takes the write section like a transaction does.
func (db *DB) Compact() error {
	if db.journal == nil {
		return nil
	}
	if db.closed.Load() {
		return ErrClosed
	}
	if err := db.writer.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer db.writer.Release(1)

	st := db.current.Load()
	rec := &wal.Record{LSN: 1, Type: wal.RecordTypeCommit}
	var encErr error
	st.byPos.Scan(func(s model.Sample) bool {
		payload, err := encodePayload(db.opts.Codec, s.Payload)
		if err != nil {
			encErr = err
			return false
		}
		rec.Ops = append(rec.Ops, wal.Op{
			Kind:     wal.OpInsert,
			ID:       s.ID,
			Kit:      s.Bucket.Kit,
			Voice:    int32(s.Bucket.Voice),
			Position: s.Position,
			Payload:  payload,
		})
		return true
	})
	if encErr != nil {
		return encErr
	}
	st.vacant.Scan(func(v vacancy) bool {
		rec.Ops = append(rec.Ops, wal.Op{
			Kind:     wal.OpVacate,
			Kit:      v.Bucket.Kit,
			Voice:    int32(v.Bucket.Voice),
			Position: v.Position,
		})
		return true
	})
	if st.schema != 0 {
		rec.Ops = append(rec.Ops, wal.Op{Kind: wal.OpSchema, Position: int64(st.schema)})
	}

	fsys := db.opts.FileSystem
	tmpPath := filepath.Join(db.dir, compactJournalName)
	_ = fsys.Remove(tmpPath)

	tmp, err := wal.Open(fsys, tmpPath, wal.Options{Durability: wal.DurabilitySync})
	if err != nil {
		return fmt.Errorf("open compacted journal: %w", err)
	}
	if len(rec.Ops) > 0 {
		if err := tmp.Append(rec); err != nil {
			tmp.Close()
			_ = fsys.Remove(tmpPath)
			return fmt.Errorf("write compacted journal: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpPath)
		return err
	}

	before := db.journal.Size()
	path := filepath.Join(db.dir, journalName)
	if err := fsys.Rename(tmpPath, path); err != nil {
		_ = fsys.Remove(tmpPath)
		return fmt.Errorf("install compacted journal: %w", err)
	}

	// The old handle now points at the unlinked file.
	if err := db.journal.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		db.opts.Logger.Warn("close old journal", "error", err)
	}
	j, err := wal.Open(fsys, path, wal.Options{Durability: db.opts.Durability})
	if err != nil {
		return fmt.Errorf("reopen journal: %w", err)
	}
	db.journal = j
	db.lsn = 0
	if len(rec.Ops) > 0 {
		db.lsn = 1
	}

	db.opts.Logger.Info("journal compacted", "before_bytes", before, "after_bytes", j.Size(), "samples", st.Len())
	return nil
}
