package romper

import (
	"context"
	"errors"
	"fmt"

	"github.com/peteb4ker/romper-sub005/boundary"
	"github.com/peteb4ker/romper-sub005/engine"
	"github.com/peteb4ker/romper-sub005/history"
	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/snapshot"
	"github.com/peteb4ker/romper-sub005/store"
	"github.com/peteb4ker/romper-sub005/txn"
)

var (
	// ErrRecordNotFound is returned when no record occupies the requested
	// rank, or no record has the requested id.
	ErrRecordNotFound = errors.New("romper: record not found")

	// ErrInvalidRank is returned for a target rank outside the valid range.
	// Use errors.As with *RankError to read the offending values.
	ErrInvalidRank = boundary.ErrInvalidRank

	// ErrDestinationFull is returned when the destination bucket already
	// holds its maximum number of records.
	ErrDestinationFull = errors.New("romper: destination bucket is full")

	// ErrInvalidBucket is returned for a voice outside the 32-bit range or
	// a kit name longer than 64 KiB.
	ErrInvalidBucket = model.ErrInvalidBucket

	ErrInvalidMode     = errors.New("romper: invalid mode")
	ErrInvalidSnapshot = errors.New("romper: invalid snapshot")

	// ErrTransaction is returned when the store rejected or failed to commit
	// a transaction. Nothing was written.
	ErrTransaction = errors.New("romper: transaction failed")

	ErrClosed = errors.New("romper: database is closed")
	ErrBusy   = errors.New("romper: database is busy")

	ErrNothingToUndo = history.ErrNothingToUndo
	ErrNothingToRedo = history.ErrNothingToRedo

	ErrNoBackup      = snapshot.ErrNoBackup
	ErrCorruptBackup = errors.New("romper: corrupt backup")
)

// RankError describes a rejected target rank.
type RankError = boundary.RankError

// OperationError is returned by every failed mutation. It names the
// operation and the pipeline stage it reached. The cause is one of the
// package errors and stays reachable with errors.Is.
type OperationError struct {
	Op    string
	Stage string
	cause error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed while %s: %v", e.Op, e.Stage, e.cause)
}

func (e *OperationError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var oe *engine.OpError
	if errors.As(err, &oe) {
		return &OperationError{Op: oe.Op, Stage: oe.Stage.String(), cause: classify(err)}
	}
	return classify(err)
}

// classify maps err onto the public taxonomy. Specific causes win over the
// generic transaction failure they are wrapped in.
func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, boundary.ErrInvalidRank), errors.Is(err, model.ErrInvalidBucket):
		// Both are already part of the public taxonomy.
		return err
	case errors.Is(err, engine.ErrRecordNotFound), errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrRecordNotFound, err)
	case errors.Is(err, engine.ErrDestinationFull):
		return fmt.Errorf("%w: %w", ErrDestinationFull, err)
	case errors.Is(err, engine.ErrInvalidMode):
		return fmt.Errorf("%w: %w", ErrInvalidMode, err)
	case errors.Is(err, engine.ErrInvalidSnapshot):
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	case errors.Is(err, store.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, store.ErrBusy):
		return fmt.Errorf("%w: %w", ErrBusy, err)
	case errors.Is(err, snapshot.ErrChecksumMismatch), errors.Is(err, snapshot.ErrIncompatibleVersion):
		return fmt.Errorf("%w: %w", ErrCorruptBackup, err)
	}

	var te *txn.Error
	if errors.As(err, &te) {
		return fmt.Errorf("%w: %w", ErrTransaction, err)
	}
	return err
}
