// Package txn runs all-or-nothing mutations against a store.
//
// The Mutator is the only component that opens write transactions. A body
// either returns nil and the transaction commits, or it fails (error or
// panic) and every write it made is rolled back.
package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/peteb4ker/romper-sub005/store"
)

// Phase identifies where a transaction failed.
type Phase int

const (
	PhaseBegin Phase = iota
	PhaseBody
	PhaseCommit
)

func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "begin"
	case PhaseBody:
		return "body"
	case PhaseCommit:
		return "commit"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Error is the structured failure of a transaction. The underlying cause is
// reachable with errors.Is and errors.As.
type Error struct {
	Op    string
	Phase Phase
	Err   error

	// RollbackErr is set when rolling back after a body failure failed too.
	RollbackErr error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: transaction failed during %s: %v", e.Op, e.Phase, e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback: %v)", e.RollbackErr)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Mutator wraps a store's transaction boundary.
type Mutator struct {
	store  store.Store
	logger *slog.Logger
}

// New returns a Mutator for s. A nil logger discards output.
func New(s store.Store, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mutator{store: s, logger: logger}
}

// Store returns the underlying store.
func (m *Mutator) Store() store.Store { return m.store }

// Run executes fn inside one write transaction.
//
// Reads that a write depends on must happen through tx inside fn.
// If fn panics the transaction is rolled back and the panic is re-raised.
func (m *Mutator) Run(ctx context.Context, op string, fn func(tx store.Tx) error) (err error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return &Error{Op: op, Phase: PhaseBegin, Err: err}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if r := recover(); r != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, store.ErrTxDone) {
				m.logger.Warn("rollback after panic failed", "op", op, "error", rerr)
			}
			panic(r)
		}
	}()

	if ferr := fn(tx); ferr != nil {
		terr := &Error{Op: op, Phase: PhaseBody, Err: ferr}
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, store.ErrTxDone) {
			terr.RollbackErr = rerr
			m.logger.Warn("rollback failed", "op", op, "error", rerr)
		}
		m.logger.Debug("transaction rolled back", "op", op, "error", ferr)
		return terr
	}

	if cerr := tx.Commit(); cerr != nil {
		// Commit finishes the transaction even when it fails.
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, store.ErrTxDone) {
			m.logger.Warn("rollback after failed commit failed", "op", op, "error", rerr)
		}
		return &Error{Op: op, Phase: PhaseCommit, Err: cerr}
	}
	committed = true
	return nil
}

// View runs fn against the last committed state.
func (m *Mutator) View(ctx context.Context, fn func(r store.Reader) error) error {
	return m.store.View(ctx, fn)
}
