// Package wal implements the commit journal used by durable stores.
//
// Every committed transaction is appended as a single checksummed record.
// On open the journal is replayed up to the last intact record and any torn
// tail is truncated away.
package wal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/peteb4ker/romper-sub005/internal/fs"
)

// Durability controls the durability guarantees of the journal.
type Durability int

const (
	// DurabilityAsync relies on the OS page cache.
	DurabilityAsync Durability = iota
	// DurabilitySync calls fsync after every commit record.
	DurabilitySync
)

const (
	journalMagic      = "ROMPRJNL"
	journalVersion    = 1
	journalHeaderSize = 12
)

var (
	ErrIncompatibleVersion = errors.New("incompatible journal version")
	ErrInvalidHeader       = errors.New("invalid journal header")
)

type Options struct {
	Durability Durability
}

func DefaultOptions() Options {
	return Options{Durability: DurabilitySync}
}

// WAL is an append-only commit journal.
type WAL struct {
	mu     sync.Mutex
	fs     fs.FileSystem
	file   fs.File
	path   string
	opts   Options
	size   int64
	closed bool

	// lastErr is set when a failed append could not be rolled back. The
	// journal refuses further writes after that.
	lastErr error
}

// Open opens or creates a journal at the given path.
func Open(fsys fs.FileSystem, path string, opts Options) (*WAL, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := stat.Size()

	if size == 0 {
		header := make([]byte, journalHeaderSize)
		copy(header[0:8], journalMagic)
		binary.LittleEndian.PutUint32(header[8:12], journalVersion)
		if _, err := f.Write(header); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, err
		}
		size = journalHeaderSize
	} else {
		if size < journalHeaderSize {
			f.Close()
			return nil, fmt.Errorf("%w: file too small (%d < %d)", ErrInvalidHeader, size, journalHeaderSize)
		}
		header := make([]byte, journalHeaderSize)
		if _, err := f.ReadAt(header, 0); err != nil {
			f.Close()
			return nil, err
		}
		if string(header[0:8]) != journalMagic {
			f.Close()
			return nil, fmt.Errorf("%w: invalid magic %q", ErrInvalidHeader, header[0:8])
		}
		if ver := binary.LittleEndian.Uint32(header[8:12]); ver != journalVersion {
			f.Close()
			return nil, fmt.Errorf("%w: version %d (expected %d)", ErrIncompatibleVersion, ver, journalVersion)
		}
	}

	return &WAL{
		fs:   fsys,
		file: f,
		path: path,
		opts: opts,
		size: size,
	}, nil
}

// Path returns the journal file path.
func (w *WAL) Path() string { return w.path }

// Size returns the current size of the journal in bytes.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Append writes a record to the journal.
//
// The record is either fully appended or not at all: a failed write is
// truncated back to the previous end of the journal.
func (w *WAL) Append(rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	if w.lastErr != nil {
		return w.lastErr
	}

	var buf bytes.Buffer
	if err := rec.Encode(&buf); err != nil {
		return err
	}

	prev := w.size
	n, err := w.file.Write(buf.Bytes())
	if err == nil && w.opts.Durability == DurabilitySync {
		err = w.file.Sync()
	}
	if err != nil {
		if n > 0 || w.opts.Durability == DurabilitySync {
			if terr := w.file.Truncate(prev); terr != nil {
				w.lastErr = fmt.Errorf("journal rollback failed: %w", errors.Join(err, terr))
			}
		}
		return err
	}

	w.size = prev + int64(n)
	return nil
}

// Sync commits buffered writes to stable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	if w.lastErr != nil {
		return w.lastErr
	}
	return w.file.Sync()
}

// Truncate discards everything past offset. It is used to drop a torn tail
// found during replay.
func (w *WAL) Truncate(offset int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	if offset < journalHeaderSize {
		offset = journalHeaderSize
	}
	if err := w.file.Truncate(offset); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.size = offset
	return nil
}

// Close closes the journal file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	return w.file.Close()
}

// Reader returns a reader for replaying the journal.
// The caller is responsible for closing the returned reader.
func (w *WAL) Reader() (*Reader, error) {
	f, err := w.fs.OpenFile(w.path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(journalHeaderSize, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{f: f, r: bufio.NewReader(f), offset: journalHeaderSize}, nil
}

// Reader iterates over journal records.
type Reader struct {
	f      fs.File
	r      *bufio.Reader
	offset int64
}

// Next reads the next record. It returns io.EOF when done.
func (r *Reader) Next() (*Record, error) {
	rec, n, err := Decode(r.r)
	if err == nil {
		r.offset += n
	}
	return rec, err
}

// Offset returns the end offset of the last intact record.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.f.Close()
}
