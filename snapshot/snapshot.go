package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/peteb4ker/romper-sub005/blobstore"
	"github.com/peteb4ker/romper-sub005/codec"
	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/resource"
)

// Options configures backups.
type Options struct {
	// Codec encodes bucket states. Restores use the codec named in the manifest.
	Codec       codec.Codec
	Compression Compression
	// Resources bounds concurrent transfers and throughput. Nil means unbounded.
	Resources *resource.Controller
	Logger    *slog.Logger
	// Now stamps manifests; tests inject a fixed clock.
	Now func() time.Time
}

// DefaultOptions returns zstd-compressed, go-json encoded backups with the
// default resource limits.
func DefaultOptions() Options {
	return Options{
		Codec:       codec.Default,
		Compression: CompressionZstd,
		Resources:   resource.NewController(resource.DefaultConfig()),
	}
}

func (o Options) normalize() Options {
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Source describes the store a backup is taken from.
type Source struct {
	ID            string
	SchemaVersion int
}

func blobPath(b model.BucketKey, id uint64) string {
	return "buckets/" + url.PathEscape(b.Kit) + "/" + strconv.Itoa(b.Voice) + "-" + strconv.FormatUint(id, 10) + ".snap"
}

// Write stores states as a new backup and makes it CURRENT. Empty buckets
// are omitted. On failure the blobs written so far are removed on a best
// effort basis and CURRENT is left untouched.
func Write(ctx context.Context, bs blobstore.BlobStore, states []model.BucketState, src Source, opts Options) (*Manifest, error) {
	opts = opts.normalize()

	ids, err := manifestIDs(ctx, bs)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	id := uint64(1)
	if len(ids) > 0 {
		id = ids[len(ids)-1] + 1
	}

	m := &Manifest{
		Version:       FormatVersion,
		ID:            id,
		CreatedAt:     opts.Now().UTC(),
		Source:        src.ID,
		SchemaVersion: src.SchemaVersion,
		Codec:         opts.Codec.Name(),
		Compression:   opts.Compression,
	}
	for _, st := range states {
		if len(st.Samples) == 0 {
			continue
		}
		m.Buckets = append(m.Buckets, BucketEntry{
			Bucket:  st.Bucket,
			Path:    blobPath(st.Bucket, id),
			Records: len(st.Samples),
		})
	}

	// Entries are written in place by index, so no locking is needed.
	g, gctx := errgroup.WithContext(ctx)
	i := 0
	for _, st := range states {
		if len(st.Samples) == 0 {
			continue
		}
		entry := &m.Buckets[i]
		i++
		g.Go(func() error {
			return writeBucket(gctx, bs, st, entry, opts)
		})
	}
	if err := g.Wait(); err != nil {
		cleanup(bs, m, opts.Logger)
		return nil, fmt.Errorf("write backup %d: %w", id, err)
	}

	data, err := manifestCodec.Marshal(m)
	if err != nil {
		cleanup(bs, m, opts.Logger)
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	name := manifestName(id)
	if err := bs.Put(ctx, name, data); err != nil {
		cleanup(bs, m, opts.Logger)
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := bs.Put(ctx, CurrentFileName, []byte(name)); err != nil {
		// The manifest is complete and stays loadable by id.
		return m, fmt.Errorf("update %s: %w", CurrentFileName, err)
	}

	opts.Logger.InfoContext(ctx, "backup written",
		slog.Uint64("id", id),
		slog.Int("buckets", len(m.Buckets)),
		slog.Int("records", m.Records()),
		slog.String("compression", m.Compression.String()))
	return m, nil
}

func writeBucket(ctx context.Context, bs blobstore.BlobStore, st model.BucketState, entry *BucketEntry, opts Options) error {
	rc := opts.Resources
	if err := rc.AcquireWorker(ctx); err != nil {
		return err
	}
	defer rc.ReleaseWorker()

	raw, err := opts.Codec.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode %s: %w", st.Bucket, err)
	}

	var buf bytes.Buffer
	zw, err := compressor(&buf, opts.Compression)
	if err != nil {
		return err
	}
	if _, err := zw.Write(raw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	size := int64(buf.Len())
	if err := rc.AcquireBuffer(ctx, size); err != nil {
		return err
	}
	defer rc.ReleaseBuffer(size)

	w, err := bs.Create(ctx, entry.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", entry.Path, err)
	}
	entry.Checksum = xxhash.Sum64(buf.Bytes())
	entry.Size = size
	if _, err := io.Copy(resource.NewWriter(ctx, w, rc), &buf); err != nil {
		abort(w)
		return fmt.Errorf("write %s: %w", entry.Path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", entry.Path, err)
	}
	return nil
}

// abort cancels an upload when the blob supports it and closes it otherwise.
func abort(w blobstore.WritableBlob) {
	if a, ok := w.(interface{ Abort() error }); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}

func cleanup(bs blobstore.BlobStore, m *Manifest, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, b := range m.Buckets {
		if err := bs.Delete(ctx, b.Path); err != nil {
			logger.Warn("backup cleanup failed", slog.String("path", b.Path), slog.Any("error", err))
		}
	}
}

// Read loads backup id (0 = CURRENT) and returns its bucket states in
// manifest order. Every blob is verified against its checksum before it is
// decoded.
func Read(ctx context.Context, bs blobstore.BlobStore, id uint64, opts Options) (*Manifest, []model.BucketState, error) {
	opts = opts.normalize()

	m, err := LoadManifest(ctx, bs, id)
	if err != nil {
		return nil, nil, err
	}
	c, ok := codec.ByName(m.Codec)
	if !ok {
		return nil, nil, fmt.Errorf("backup %d: unknown codec %q", m.ID, m.Codec)
	}

	states := make([]model.BucketState, len(m.Buckets))
	g, gctx := errgroup.WithContext(ctx)
	for i := range m.Buckets {
		g.Go(func() error {
			st, err := readBucket(gctx, bs, m.Buckets[i], c, m.Compression, opts.Resources)
			if err != nil {
				return err
			}
			states[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("read backup %d: %w", m.ID, err)
	}

	opts.Logger.InfoContext(ctx, "backup read",
		slog.Uint64("id", m.ID),
		slog.Int("buckets", len(states)),
		slog.Int("records", m.Records()))
	return m, states, nil
}

func readBucket(ctx context.Context, bs blobstore.BlobStore, e BucketEntry, c codec.Codec, comp Compression, rc *resource.Controller) (model.BucketState, error) {
	if err := rc.AcquireWorker(ctx); err != nil {
		return model.BucketState{}, err
	}
	defer rc.ReleaseWorker()

	if err := rc.AcquireBuffer(ctx, e.Size); err != nil {
		return model.BucketState{}, err
	}
	defer rc.ReleaseBuffer(e.Size)

	blob, err := bs.Open(ctx, e.Path)
	if err != nil {
		return model.BucketState{}, fmt.Errorf("open %s: %w", e.Path, err)
	}
	defer blob.Close()
	if blob.Size() != e.Size {
		return model.BucketState{}, fmt.Errorf("%w: %s has %d bytes, manifest says %d", ErrChecksumMismatch, e.Path, blob.Size(), e.Size)
	}

	r, err := blob.ReadRange(ctx, 0, e.Size)
	if err != nil {
		return model.BucketState{}, fmt.Errorf("read %s: %w", e.Path, err)
	}
	defer r.Close()

	stored, err := io.ReadAll(resource.NewReader(ctx, r, rc))
	if err != nil {
		return model.BucketState{}, fmt.Errorf("read %s: %w", e.Path, err)
	}
	if sum := xxhash.Sum64(stored); sum != e.Checksum {
		return model.BucketState{}, fmt.Errorf("%w: %s", ErrChecksumMismatch, e.Path)
	}

	dr, err := decompress(bytes.NewReader(stored), comp)
	if err != nil {
		return model.BucketState{}, err
	}
	defer dr.Close()
	raw, err := io.ReadAll(dr)
	if err != nil {
		return model.BucketState{}, fmt.Errorf("decompress %s: %w", e.Path, err)
	}

	var st model.BucketState
	if err := c.Unmarshal(raw, &st); err != nil {
		return model.BucketState{}, fmt.Errorf("decode %s: %w", e.Path, err)
	}
	if st.Bucket != e.Bucket || len(st.Samples) != e.Records {
		return model.BucketState{}, fmt.Errorf("%w: %s does not hold %s", ErrChecksumMismatch, e.Path, e.Bucket)
	}
	return st, nil
}

// Delete removes backup id (0 = CURRENT) and its bucket blobs. CURRENT is
// left alone, so deleting the current backup makes LoadManifest(ctx, bs, 0)
// fail with ErrNoBackup until the next Write.
func Delete(ctx context.Context, bs blobstore.BlobStore, id uint64) error {
	m, err := LoadManifest(ctx, bs, id)
	if err != nil {
		return err
	}
	var errs []error
	for _, b := range m.Buckets {
		if err := bs.Delete(ctx, b.Path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return bs.Delete(ctx, manifestName(m.ID))
}
