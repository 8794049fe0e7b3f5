package engine

import (
	"context"
	"fmt"

	"github.com/peteb4ker/romper-sub005/boundary"
	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/position"
)

// MoveWithinBucket moves the record at fromRank to toRank inside one bucket.
//
// toRank may equal the bucket size, which moves the record to the end. A
// toRank naming a vacated slot moves the record into it. Only the moved
// record is written unless the bucket has to be redistributed to make room,
// in which case the rewritten siblings are reported in Result.Repositioned.
// Moving a record onto its own rank is a no-op.
func (e *Engine) MoveWithinBucket(ctx context.Context, bucket model.BucketKey, fromRank, toRank int) (*Result, error) {
	attrs := []any{"from_rank", fromRank, "to_rank", toRank}
	return e.run(ctx, OpMoveWithinBucket, bucket, attrs, func(p *pipeline) error {
		p.enter(StageValidating)
		samples := p.bucket(bucket)
		n := len(samples)
		if fromRank < 0 || fromRank >= n {
			return recordNotFound(bucket, fromRank, n)
		}
		layout := p.layout(bucket)
		if err := boundary.ValidateTargetRank(layout.Occupancy, toRank, position.Capacity); err != nil {
			return err
		}
		moved := samples[fromRank]
		p.res.Sample = moved

		hole, filling := layout.Vacancy(toRank)
		final := min(toRank, n-1)
		if final == fromRank && !filling {
			p.res.NoOp = true
			return nil
		}

		p.enter(StageAllocating)
		target, err := p.place(bucket, without(samples, fromRank), final, hole, filling)
		if err != nil {
			return err
		}

		p.enter(StageCommitting)
		return p.tx.Move(moved.ID, bucket, target)
	})
}

// MoveAcrossBuckets moves the record at fromRank in from to toRank in to.
//
// The source bucket is compacted in the same transaction. With ModeInsert a
// full destination is rejected with ErrDestinationFull. With ModeOverwrite a
// record already at toRank is deleted and reported in Result.Replaced.
// Requests whose source and destination are the same bucket are handled by
// MoveWithinBucket.
func (e *Engine) MoveAcrossBuckets(ctx context.Context, from model.BucketKey, fromRank int, to model.BucketKey, toRank int, mode Mode) (*Result, error) {
	if !mode.Valid() {
		return nil, &OpError{
			Op:     OpMoveAcrossBuckets,
			Bucket: to,
			Stage:  StageValidating,
			Err:    fmt.Errorf("%w: %s", ErrInvalidMode, mode),
		}
	}
	if from == to {
		return e.MoveWithinBucket(ctx, from, fromRank, toRank)
	}

	attrs := []any{
		"from_kit", from.Kit, "from_voice", from.Voice, "from_rank", fromRank,
		"to_rank", toRank, "mode", mode.String(),
	}
	return e.run(ctx, OpMoveAcrossBuckets, to, attrs, func(p *pipeline) error {
		p.enter(StageValidating)
		src := p.bucket(from)
		if fromRank < 0 || fromRank >= len(src) {
			return recordNotFound(from, fromRank, len(src))
		}
		if err := to.Validate(); err != nil {
			return err
		}
		dst := p.bucket(to)
		layout := p.layout(to)
		hole, filling := layout.Vacancy(toRank)

		overwrite := mode == ModeOverwrite && layout.Occupied(toRank)
		if !overwrite && !filling && layout.Slots() >= position.Capacity {
			return fmt.Errorf("%w: %s holds %d records", ErrDestinationFull, to, len(dst))
		}
		if err := boundary.ValidateTargetRank(layout.Occupancy, toRank, position.Capacity); err != nil {
			return err
		}
		moved := src[fromRank]
		p.res.Sample = moved

		p.enter(StageAllocating)
		remaining := without(src, fromRank)
		var target int64
		if overwrite {
			// Ranks up to the first vacated slot count records only.
			replaced := dst[toRank]
			p.res.Replaced = &replaced
			target = replaced.Position
		} else {
			var err error
			target, err = p.place(to, dst, toRank, hole, filling)
			if err != nil {
				return err
			}
		}

		// Source compaction is the same step a delete performs.
		changed, err := p.compact(from, remaining)
		if err != nil {
			return err
		}
		if changed {
			p.redistributed(from)
		}

		p.enter(StageCommitting)
		if p.res.Replaced != nil {
			if _, err := p.tx.Delete(p.res.Replaced.ID); err != nil {
				return err
			}
		}
		return p.tx.Move(moved.ID, to, target)
	})
}
