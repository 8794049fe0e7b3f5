package engine

import (
	"errors"
	"fmt"

	"github.com/peteb4ker/romper-sub005/model"
)

var (
	// ErrRecordNotFound is returned when no record occupies the source rank.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDestinationFull is returned when the destination bucket already
	// holds capacity records.
	ErrDestinationFull = errors.New("destination bucket is full")
	// ErrInvalidMode is returned for a Mode outside the declared constants.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidSnapshot is returned by Restore for inconsistent states.
	ErrInvalidSnapshot = errors.New("invalid bucket snapshot")
)

// Stage is a step of the operation pipeline.
type Stage int

const (
	StageValidating Stage = iota
	StageAllocating
	StageRedistributing
	StageCommitting
	StageDone
	StageAborted
)

func (s Stage) String() string {
	switch s {
	case StageValidating:
		return "validating"
	case StageAllocating:
		return "allocating"
	case StageRedistributing:
		return "redistributing"
	case StageCommitting:
		return "committing"
	case StageDone:
		return "done"
	case StageAborted:
		return "aborted"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// OpError is returned by every failed operation. Stage is the last stage
// the operation entered before it aborted.
type OpError struct {
	Op     string
	Bucket model.BucketKey
	Stage  Stage
	Err    error
}

func (e *OpError) Error() string {
	if e.Bucket == (model.BucketKey{}) {
		return fmt.Sprintf("%s aborted while %s: %v", e.Op, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s aborted while %s: %v", e.Op, e.Bucket, e.Stage, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func recordNotFound(bucket model.BucketKey, rank, n int) error {
	return fmt.Errorf("%w: rank %d in %s (%d records)", ErrRecordNotFound, rank, bucket, n)
}
