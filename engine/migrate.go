package engine

import (
	"context"
	"sync"

	"github.com/peteb4ker/romper-sub005/position"
	"github.com/peteb4ker/romper-sub005/store"
)

// SchemaVersion is the schema version this engine writes.
const SchemaVersion = 1

// Migration upgrades a store to Version inside one transaction.
type Migration struct {
	Version int
	Name    string
	Apply   func(tx store.Tx) error
}

// Migrations lists every schema migration in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "canonical-spacing", Apply: canonicalSpacing},
	}
}

// canonicalSpacing respaces every bucket. Stores written before schema 1
// kept raw slot numbers as positions, which leaves no room for inserts.
func canonicalSpacing(tx store.Tx) error {
	for _, key := range tx.Buckets() {
		samples := tx.Bucket(key)
		if position.IsCanonical(samples) {
			continue
		}
		for i, s := range position.Redistribute(samples) {
			if s.Position == samples[i].Position {
				continue
			}
			if err := tx.Move(s.ID, key, s.Position); err != nil {
				return err
			}
		}
	}
	return nil
}

// MigrationTracker records which stores were checked for pending migrations
// during this run. Engines sharing a tracker check each store once.
type MigrationTracker struct {
	mu      sync.Mutex
	checked map[string]int
}

// NewMigrationTracker returns an empty tracker.
func NewMigrationTracker() *MigrationTracker {
	return &MigrationTracker{checked: make(map[string]int)}
}

// Checked reports whether the store with the given id was already checked.
func (t *MigrationTracker) Checked(storeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.checked[storeID]
	return ok
}

// Version returns the schema version recorded for a checked store.
func (t *MigrationTracker) Version(storeID string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.checked[storeID]
	return v, ok
}

// Forget drops the record for a store so the next engine checks it again.
func (t *MigrationTracker) Forget(storeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.checked, storeID)
}

func (t *MigrationTracker) mark(storeID string, version int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checked[storeID] = version
}

func (e *Engine) migrate(ctx context.Context) error {
	s := e.mut.Store()
	if e.migrations.Checked(s.ID()) {
		return nil
	}

	var current int
	if err := s.View(ctx, func(r store.Reader) error {
		current = r.SchemaVersion()
		return nil
	}); err != nil {
		return err
	}

	for _, m := range Migrations() {
		if m.Version <= current {
			continue
		}
		err := e.mut.Run(ctx, OpMigrate, func(tx store.Tx) error {
			if tx.SchemaVersion() >= m.Version {
				return nil
			}
			if err := m.Apply(tx); err != nil {
				return err
			}
			return tx.SetSchemaVersion(m.Version)
		})
		if err != nil {
			return err
		}
		e.logger.Info("migration applied", "store", s.ID(), "version", m.Version, "name", m.Name)
		current = m.Version
	}

	e.migrations.mark(s.ID(), current)
	return nil
}
