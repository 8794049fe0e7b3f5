package snapshot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteb4ker/romper-sub005/blobstore"
	"github.com/peteb4ker/romper-sub005/codec"
	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/resource"
)

func states() []model.BucketState {
	mk := func(b model.BucketKey, files ...string) model.BucketState {
		st := model.BucketState{Bucket: b}
		for i, f := range files {
			st.Samples = append(st.Samples, model.Sample{
				ID:       model.NewSampleID(),
				Bucket:   b,
				Position: int64(i+1) * 100,
				Payload:  model.Payload{FilePath: f, SampleRate: 44100, BitDepth: 16, Channels: 2, Stereo: true},
			})
		}
		return st
	}
	return []model.BucketState{
		mk(model.Bucket("A0", 1), "/kits/A0/kick.wav", "/kits/A0/kick2.wav"),
		mk(model.Bucket("A0", 2), "/kits/A0/snare.wav"),
		mk(model.Bucket("A0", 3)),
		mk(model.Bucket("B/1", 4), "/kits/B1/hat.wav", "/kits/B1/hat2.wav", "/kits/B1/hat3.wav"),
	}
}

func nonEmpty(in []model.BucketState) []model.BucketState {
	var out []model.BucketState
	for _, st := range in {
		if len(st.Samples) > 0 {
			out = append(out, st)
		}
	}
	return out
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return opts
}

func TestWriteRead(t *testing.T) {
	tests := []struct {
		name        string
		codec       codec.Codec
		compression Compression
	}{
		{"none", codec.Default, CompressionNone},
		{"lz4", codec.Default, CompressionLZ4},
		{"zstd", codec.Default, CompressionZstd},
		{"cbor-zstd", codec.CBOR{}, CompressionZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			bs := blobstore.NewMemoryStore()
			opts := testOptions()
			opts.Codec = tt.codec
			opts.Compression = tt.compression
			in := states()

			m, err := Write(ctx, bs, in, Source{ID: "mem:test", SchemaVersion: 1}, opts)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), m.ID)
			assert.Equal(t, tt.codec.Name(), m.Codec)
			assert.Equal(t, 6, m.Records())
			require.Len(t, m.Buckets, 3)

			got, out, err := Read(ctx, bs, 0, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, m.ID, got.ID)
			assert.Equal(t, "mem:test", got.Source)
			assert.Equal(t, 1, got.SchemaVersion)
			assert.Equal(t, tt.compression, got.Compression)
			assert.True(t, got.CreatedAt.Equal(m.CreatedAt))
			assert.Equal(t, nonEmpty(in), out)
		})
	}
}

func TestVersionsAndCurrent(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	first := states()
	second := first[:1]

	m1, err := Write(ctx, bs, first, Source{}, testOptions())
	require.NoError(t, err)
	m2, err := Write(ctx, bs, second, Source{}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, m1.ID+1, m2.ID)

	current, err := blobstore.ReadAll(ctx, bs, CurrentFileName)
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000002.json", string(current))

	_, latest, err := Read(ctx, bs, 0, testOptions())
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	_, old, err := Read(ctx, bs, m1.ID, testOptions())
	require.NoError(t, err)
	assert.Equal(t, nonEmpty(first), old)

	all, err := List(ctx, bs)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []uint64{1, 2}, []uint64{all[0].ID, all[1].ID})
}

func TestBlobLayout(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	_, err := Write(ctx, bs, states(), Source{}, testOptions())
	require.NoError(t, err)

	names, err := bs.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CURRENT",
		"MANIFEST-000001.json",
		"buckets/A0/1-1.snap",
		"buckets/A0/2-1.snap",
		"buckets/B%2F1/4-1.snap",
	}, names)
}

func TestReadDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	m, err := Write(ctx, bs, states(), Source{}, testOptions())
	require.NoError(t, err)

	path := m.Buckets[0].Path
	data, err := blobstore.ReadAll(ctx, bs, path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xFF
	require.NoError(t, bs.Put(ctx, path, data))

	_, _, err = Read(ctx, bs, 0, testOptions())
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	require.NoError(t, bs.Put(ctx, path, data[:len(data)-1]))
	_, _, err = Read(ctx, bs, 0, testOptions())
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReadWithoutBackup(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	_, _, err := Read(ctx, bs, 0, testOptions())
	assert.ErrorIs(t, err, ErrNoBackup)

	_, _, err = Read(ctx, bs, 7, testOptions())
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestIncompatibleManifest(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	require.NoError(t, bs.Put(ctx, "MANIFEST-000001.json", []byte(`{"version":99,"id":1}`)))

	_, err := LoadManifest(ctx, bs, 1)
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestListSkipsDamagedManifests(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	_, err := Write(ctx, bs, states(), Source{}, testOptions())
	require.NoError(t, err)
	require.NoError(t, bs.Put(ctx, "MANIFEST-000002.json", []byte("{not json")))
	require.NoError(t, bs.Put(ctx, "MANIFEST-notes.txt", []byte("ignored")))

	all, err := List(ctx, bs)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, uint64(1), all[0].ID)

	m, err := Write(ctx, bs, states(), Source{}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.ID)
}

// failingStore fails Create for paths containing match.
type failingStore struct {
	*blobstore.MemoryStore
	match string
}

var errUpload = errors.New("upload failed")

func (f *failingStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if strings.Contains(name, f.match) {
		return nil, errUpload
	}
	return f.MemoryStore.Create(ctx, name)
}

func TestWriteFailureLeavesNoBackup(t *testing.T) {
	ctx := context.Background()
	bs := &failingStore{MemoryStore: blobstore.NewMemoryStore(), match: "B%2F1"}

	_, err := Write(ctx, bs, states(), Source{}, testOptions())
	require.ErrorIs(t, err, errUpload)

	names, err := bs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = LoadManifest(ctx, bs, 0)
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	_, err := Write(ctx, bs, states(), Source{}, testOptions())
	require.NoError(t, err)
	m2, err := Write(ctx, bs, states(), Source{}, testOptions())
	require.NoError(t, err)

	require.NoError(t, Delete(ctx, bs, 1))

	all, err := List(ctx, bs)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, m2.ID, all[0].ID)

	blobs, err := bs.List(ctx, "buckets/")
	require.NoError(t, err)
	assert.Len(t, blobs, len(m2.Buckets))
	for _, b := range blobs {
		assert.True(t, strings.HasSuffix(b, "-2.snap"), b)
	}
}

func TestWriteHonoursResourceLimits(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	opts := testOptions()
	opts.Resources = resource.NewController(resource.Config{MaxWorkers: 1, BufferLimitBytes: 64})

	_, err := Write(ctx, bs, states(), Source{}, opts)
	require.NoError(t, err)
	assert.Zero(t, opts.Resources.BufferUsage())

	_, out, err := Read(ctx, bs, 0, opts)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Zero(t, opts.Resources.BufferUsage())
}

func TestCompressionText(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		text, err := c.MarshalText()
		require.NoError(t, err)
		var got Compression
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
	_, err = Compression(9).MarshalText()
	assert.Error(t, err)
}
