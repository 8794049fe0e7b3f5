package snapshot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/peteb4ker/romper-sub005/blobstore"
	"github.com/peteb4ker/romper-sub005/codec"
	"github.com/peteb4ker/romper-sub005/model"
)

const (
	ManifestPrefix  = "MANIFEST-"
	CurrentFileName = "CURRENT"
	// FormatVersion is the version of the manifest layout.
	FormatVersion = 1
)

var (
	// ErrNoBackup is returned when the target holds no backup, or not the
	// requested one.
	ErrNoBackup = errors.New("no backup found")

	// ErrIncompatibleVersion is returned for manifests written by a newer format.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")

	// ErrChecksumMismatch is returned when a bucket blob does not match the
	// checksum recorded in its manifest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// manifestCodec encodes manifests. It is fixed so that any codec choice for
// bucket blobs still yields readable .json manifests.
var manifestCodec codec.Codec = codec.GoJSON{}

// Manifest describes one backup.
type Manifest struct {
	Version       int           `json:"version"`
	ID            uint64        `json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	Source        string        `json:"source,omitempty"`
	SchemaVersion int           `json:"schema_version"`
	Codec         string        `json:"codec"`
	Compression   Compression   `json:"compression"`
	Buckets       []BucketEntry `json:"buckets"`
}

// BucketEntry locates one bucket blob.
type BucketEntry struct {
	Bucket   model.BucketKey `json:"bucket"`
	Path     string          `json:"path"`
	Records  int             `json:"records"`
	Size     int64           `json:"size"`
	Checksum uint64          `json:"checksum"`
}

// Records returns the total number of records in the backup.
func (m *Manifest) Records() int {
	n := 0
	for _, b := range m.Buckets {
		n += b.Records
	}
	return n
}

func manifestName(id uint64) string {
	return fmt.Sprintf("%s%06d.json", ManifestPrefix, id)
}

func parseManifestName(name string) (uint64, bool) {
	s, ok := strings.CutPrefix(name, ManifestPrefix)
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, ".json")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	return id, err == nil
}

// manifestIDs returns the ids of every manifest in bs, ascending.
func manifestIDs(ctx context.Context, bs blobstore.BlobStore) ([]uint64, error) {
	names, err := bs.List(ctx, ManifestPrefix)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, name := range names {
		if id, ok := parseManifestName(name); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func readManifest(ctx context.Context, bs blobstore.BlobStore, name string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, bs, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoBackup, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	m := &Manifest{}
	if err := manifestCodec.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if m.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %s has version %d", ErrIncompatibleVersion, name, m.Version)
	}
	return m, nil
}

// LoadManifest loads backup id, or the one CURRENT points at when id is 0.
func LoadManifest(ctx context.Context, bs blobstore.BlobStore, id uint64) (*Manifest, error) {
	if id != 0 {
		return readManifest(ctx, bs, manifestName(id))
	}
	current, err := blobstore.ReadAll(ctx, bs, CurrentFileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNoBackup
		}
		return nil, fmt.Errorf("read %s: %w", CurrentFileName, err)
	}
	return readManifest(ctx, bs, strings.TrimSpace(string(current)))
}

// List returns every readable manifest in bs, oldest first. Unreadable
// manifests are skipped so one damaged backup does not hide the others.
func List(ctx context.Context, bs blobstore.BlobStore) ([]*Manifest, error) {
	ids, err := manifestIDs(ctx, bs)
	if err != nil {
		return nil, err
	}
	var out []*Manifest
	for _, id := range ids {
		m, err := readManifest(ctx, bs, manifestName(id))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
