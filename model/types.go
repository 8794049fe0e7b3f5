package model

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
)

// SampleID is the stable identity of a sample record.
type SampleID uuid.UUID

// NewSampleID returns a fresh random SampleID.
func NewSampleID() SampleID {
	return SampleID(uuid.New())
}

// ParseSampleID parses the canonical UUID text form.
func ParseSampleID(s string) (SampleID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SampleID{}, fmt.Errorf("parse sample id: %w", err)
	}
	return SampleID(u), nil
}

// String returns the canonical UUID text form.
func (id SampleID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero value.
func (id SampleID) IsZero() bool {
	return id == SampleID{}
}

// Compare orders ids bytewise.
func (id SampleID) Compare(other SampleID) int {
	return slices.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id SampleID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SampleID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*id = SampleID(u)
	return nil
}

// BucketKey identifies one (kit, voice) bucket.
type BucketKey struct {
	Kit   string `json:"kit" cbor:"kit"`
	Voice int    `json:"voice" cbor:"voice"`
}

// Bucket is shorthand for BucketKey{Kit: kit, Voice: voice}.
func Bucket(kit string, voice int) BucketKey {
	return BucketKey{Kit: kit, Voice: voice}
}

// ErrInvalidBucket is returned for a bucket key the journal cannot hold.
var ErrInvalidBucket = errors.New("invalid bucket")

// Validate checks that the voice fits in 32 bits and the kit name in 64 KiB.
func (b BucketKey) Validate() error {
	if b.Voice < math.MinInt32 || b.Voice > math.MaxInt32 {
		return fmt.Errorf("%w: voice %d out of range", ErrInvalidBucket, b.Voice)
	}
	if len(b.Kit) > math.MaxUint16 {
		return fmt.Errorf("%w: kit name is %d bytes", ErrInvalidBucket, len(b.Kit))
	}
	return nil
}

// String returns "kit/voice".
func (b BucketKey) String() string {
	return fmt.Sprintf("%s/%d", b.Kit, b.Voice)
}

// Compare orders buckets by kit, then voice.
func (b BucketKey) Compare(other BucketKey) int {
	if c := cmp.Compare(b.Kit, other.Kit); c != 0 {
		return c
	}
	return cmp.Compare(b.Voice, other.Voice)
}

// Payload is the opaque part of a sample. The engine stores and returns it
// unchanged.
type Payload struct {
	FilePath   string `json:"file_path" cbor:"file_path"`
	Stereo     bool   `json:"stereo,omitempty" cbor:"stereo,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty" cbor:"sample_rate,omitempty"`
	BitDepth   int    `json:"bit_depth,omitempty" cbor:"bit_depth,omitempty"`
	Channels   int    `json:"channels,omitempty" cbor:"channels,omitempty"`
}

// Sample is a single record in a bucket.
type Sample struct {
	ID       SampleID  `json:"id" cbor:"id"`
	Bucket   BucketKey `json:"bucket" cbor:"bucket"`
	Position int64     `json:"position" cbor:"position"`
	Payload  Payload   `json:"payload" cbor:"payload"`
}

// String returns a compact debug representation.
func (s Sample) String() string {
	return fmt.Sprintf("Sample(%s@%s:%d)", s.ID, s.Bucket, s.Position)
}

// Repositioned describes a record whose position (and possibly bucket) was
// rewritten by an operation.
type Repositioned struct {
	Sample      Sample    `json:"sample"`
	OldBucket   BucketKey `json:"old_bucket"`
	OldPosition int64     `json:"old_position"`
}

// BucketState is the complete ordered contents of one bucket. Vacant holds
// the positions of display slots emptied without compaction.
type BucketState struct {
	Bucket  BucketKey `json:"bucket" cbor:"bucket"`
	Samples []Sample  `json:"samples" cbor:"samples"`
	Vacant  []int64   `json:"vacant,omitempty" cbor:"vacant,omitempty"`
}

// Positions returns the positions of samples in order.
func Positions(samples []Sample) []int64 {
	out := make([]int64, len(samples))
	for i, s := range samples {
		out[i] = s.Position
	}
	return out
}

// SortByPosition sorts samples by ascending position, breaking ties by id.
func SortByPosition(samples []Sample) {
	slices.SortFunc(samples, func(a, b Sample) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
}

// Clone returns a deep copy of the state.
func (s BucketState) Clone() BucketState {
	return BucketState{Bucket: s.Bucket, Samples: slices.Clone(s.Samples), Vacant: slices.Clone(s.Vacant)}
}
