package position

import (
	"testing"

	"github.com/peteb4ker/romper-sub005/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplesAt(positions ...int64) []model.Sample {
	out := make([]model.Sample, len(positions))
	for i, p := range positions {
		out[i] = model.Sample{ID: model.NewSampleID(), Bucket: model.Bucket("kit", 1), Position: p}
	}
	return out
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name     string
		existing []int64
		rank     int
		want     int64
		wantErr  error
	}{
		{name: "empty bucket", existing: nil, rank: 0, want: First},
		{name: "prepend halves first", existing: []int64{100, 200}, rank: 0, want: 50},
		{name: "append adds spacing", existing: []int64{100, 200}, rank: 2, want: 300},
		{name: "midpoint", existing: []int64{100, 200, 300}, rank: 1, want: 150},
		{name: "midpoint rounds down", existing: []int64{100, 103}, rank: 1, want: 101},
		{name: "prepend before one", existing: []int64{1, 100}, rank: 0, want: 0},
		{name: "prepend before zero", existing: []int64{0, 100}, rank: 0, wantErr: ErrNeedsRedistribution},
		{name: "adjacent neighbours", existing: []int64{100, 101}, rank: 1, wantErr: ErrNeedsRedistribution},
		{name: "equal neighbours", existing: []int64{100, 100}, rank: 1, wantErr: ErrNeedsRedistribution},
		{name: "negative rank", existing: []int64{100}, rank: -1, wantErr: ErrRankOutOfRange},
		{name: "rank past end", existing: []int64{100}, rank: 2, wantErr: ErrRankOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.existing, tt.rank)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocate_ExhaustsAfterRepeatedInsertion(t *testing.T) {
	positions := []int64{100, 200}
	inserted := 0
	for {
		pos, err := Allocate(positions, 1)
		if err != nil {
			assert.ErrorIs(t, err, ErrNeedsRedistribution)
			break
		}
		positions = []int64{positions[0], pos}
		inserted++
	}
	// 100 -> 200 can be halved until the neighbours are adjacent.
	assert.Equal(t, 6, inserted)
	assert.Equal(t, []int64{100, 101}, positions)
}

func TestShouldRedistribute(t *testing.T) {
	assert.False(t, ShouldRedistribute([]int64{100, 200}, 1))
	assert.True(t, ShouldRedistribute([]int64{100, 101}, 1))
	assert.False(t, ShouldRedistribute([]int64{100, 101}, 2))
	assert.False(t, ShouldRedistribute([]int64{100, 101}, 0))
	assert.False(t, ShouldRedistribute([]int64{100}, 5), "out of range is not a redistribution case")
}

func TestRedistribute(t *testing.T) {
	in := samplesAt(3, 50, 51, 999)
	out := Redistribute(in)

	require.Len(t, out, 4)
	for i := range out {
		assert.Equal(t, in[i].ID, out[i].ID, "identity preserved at rank %d", i)
		assert.Equal(t, Canonical(i), out[i].Position)
	}
	assert.Equal(t, int64(3), in[0].Position, "input is not mutated")
	assert.True(t, IsCanonical(out))
	assert.False(t, IsCanonical(in))
}

func TestRedistribute_Idempotent(t *testing.T) {
	once := Redistribute(samplesAt(7, 8, 9, 10, 400))
	twice := Redistribute(once)
	assert.Equal(t, once, twice)
}

func TestPlace(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		p, err := Place(samplesAt(100, 200), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(150), p.Position)
		assert.False(t, p.Redistributed())
	})

	t.Run("exhausted neighbours redistribute first", func(t *testing.T) {
		siblings := samplesAt(100, 101)
		p, err := Place(siblings, 1)
		require.NoError(t, err)
		require.True(t, p.Redistributed())
		assert.Equal(t, []int64{100, 200}, model.Positions(p.Siblings))
		assert.Equal(t, int64(150), p.Position)
		assert.Equal(t, siblings[1].ID, p.Siblings[1].ID)
	})

	t.Run("prepend at zero", func(t *testing.T) {
		p, err := Place(samplesAt(0, 1), 0)
		require.NoError(t, err)
		require.True(t, p.Redistributed())
		assert.Equal(t, int64(50), p.Position)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := Place(samplesAt(100), 3)
		assert.ErrorIs(t, err, ErrRankOutOfRange)
	})
}
