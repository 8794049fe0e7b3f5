package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/position"
	"github.com/peteb4ker/romper-sub005/store"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

var sampleNames = []string{"kick", "snare", "hat", "clap", "tom", "rim", "ride", "crash"}

// Payload returns a plausible random payload.
func (r *RNG) Payload() model.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	rates := []int{22050, 44100, 48000}
	return model.Payload{
		FilePath:   fmt.Sprintf("%s_%03d.wav", sampleNames[r.rand.Intn(len(sampleNames))], r.rand.Intn(1000)),
		Stereo:     r.rand.Intn(2) == 1,
		SampleRate: rates[r.rand.Intn(len(rates))],
		BitDepth:   16,
		Channels:   1 + r.rand.Intn(2),
	}
}

// Bucket returns a random bucket key among kits A0..A9 and voices 1..4.
func (r *RNG) Bucket() model.BucketKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.Bucket(fmt.Sprintf("A%d", r.rand.Intn(10)), 1+r.rand.Intn(4))
}

// SeedBucket inserts one record per position into key and returns them in
// position order. Without positions it is a no-op.
func SeedBucket(tb testing.TB, s store.Store, key model.BucketKey, positions ...int64) []model.Sample {
	tb.Helper()
	out := make([]model.Sample, 0, len(positions))
	tx, err := s.Begin(context.Background())
	require.NoError(tb, err)
	for i, pos := range positions {
		smp := model.Sample{
			ID:       model.NewSampleID(),
			Bucket:   key,
			Position: pos,
			Payload:  model.Payload{FilePath: fmt.Sprintf("%s/%d.wav", key, i)},
		}
		if err := tx.Insert(smp); err != nil {
			tx.Rollback()
			require.NoError(tb, err)
		}
		out = append(out, smp)
	}
	require.NoError(tb, tx.Commit())
	model.SortByPosition(out)
	return out
}

// SeedCanonical fills key with n canonically spaced records.
func SeedCanonical(tb testing.TB, s store.Store, key model.BucketKey, n int) []model.Sample {
	tb.Helper()
	positions := make([]int64, n)
	for i := range positions {
		positions[i] = position.Canonical(i)
	}
	return SeedBucket(tb, s, key, positions...)
}

// ReadBucket returns the committed contents of key.
func ReadBucket(tb testing.TB, s store.Store, key model.BucketKey) []model.Sample {
	tb.Helper()
	var out []model.Sample
	require.NoError(tb, s.View(context.Background(), func(r store.Reader) error {
		out = r.Bucket(key)
		return nil
	}))
	return out
}

// ReadVacancies returns the vacated slot positions of key.
func ReadVacancies(tb testing.TB, s store.Store, key model.BucketKey) []int64 {
	tb.Helper()
	var out []int64
	require.NoError(tb, s.View(context.Background(), func(r store.Reader) error {
		out = r.Vacancies(key)
		return nil
	}))
	return out
}

// ReadAll returns the committed contents of every bucket.
func ReadAll(tb testing.TB, s store.Store) map[model.BucketKey][]model.Sample {
	tb.Helper()
	out := make(map[model.BucketKey][]model.Sample)
	require.NoError(tb, s.View(context.Background(), func(r store.Reader) error {
		for _, key := range r.Buckets() {
			out[key] = r.Bucket(key)
		}
		return nil
	}))
	return out
}

// IDs returns the ids of samples in order.
func IDs(samples []model.Sample) []model.SampleID {
	out := make([]model.SampleID, len(samples))
	for i, s := range samples {
		out[i] = s.ID
	}
	return out
}

// AssertBucketInvariants checks the ordering invariants of one bucket:
// strictly increasing distinct positions, a single bucket key and at most
// capacity records.
func AssertBucketInvariants(tb testing.TB, samples []model.Sample) bool {
	tb.Helper()
	ok := assert.LessOrEqual(tb, len(samples), position.Capacity, "bucket exceeds capacity")
	for i := 1; i < len(samples); i++ {
		ok = assert.Less(tb, samples[i-1].Position, samples[i].Position,
			"positions at ranks %d and %d are not strictly increasing", i-1, i) && ok
		ok = assert.Equal(tb, samples[0].Bucket, samples[i].Bucket, "mixed buckets") && ok
	}
	for _, s := range samples {
		ok = assert.GreaterOrEqual(tb, s.Position, int64(0), "negative position") && ok
	}
	return ok
}

// AssertStoreInvariants checks every bucket of s.
func AssertStoreInvariants(tb testing.TB, s store.Store) bool {
	tb.Helper()
	ok := true
	for _, samples := range ReadAll(tb, s) {
		ok = AssertBucketInvariants(tb, samples) && ok
	}
	return ok
}
