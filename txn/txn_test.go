package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/store"
)

var errBusiness = errors.New("business rule violated")

func bucketPositions(t *testing.T, m *Mutator, key model.BucketKey) []int64 {
	t.Helper()
	var out []int64
	require.NoError(t, m.View(context.Background(), func(r store.Reader) error {
		out = model.Positions(r.Bucket(key))
		return nil
	}))
	return out
}

func seeded(t *testing.T) (*Mutator, model.BucketKey, []model.Sample) {
	t.Helper()
	db := store.NewMemory(store.Options{})
	t.Cleanup(func() { db.Close() })
	m := New(db, nil)

	key := model.Bucket("A0", 1)
	samples := []model.Sample{
		{ID: model.NewSampleID(), Bucket: key, Position: 100},
		{ID: model.NewSampleID(), Bucket: key, Position: 200},
		{ID: model.NewSampleID(), Bucket: key, Position: 300},
	}
	require.NoError(t, m.Run(context.Background(), "seed", func(tx store.Tx) error {
		for _, s := range samples {
			if err := tx.Insert(s); err != nil {
				return err
			}
		}
		return nil
	}))
	return m, key, samples
}

func TestRun_Commits(t *testing.T) {
	m, key, samples := seeded(t)

	err := m.Run(context.Background(), "move", func(tx store.Tx) error {
		return tx.Move(samples[0].ID, key, 400)
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{200, 300, 400}, bucketPositions(t, m, key))
}

func TestRun_BodyErrorRollsBack(t *testing.T) {
	m, key, samples := seeded(t)

	err := m.Run(context.Background(), "reindex", func(tx store.Tx) error {
		if err := tx.Move(samples[0].ID, key, 150); err != nil {
			return err
		}
		if err := tx.Move(samples[1].ID, key, 250); err != nil {
			return err
		}
		return errBusiness
	})

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "reindex", terr.Op)
	assert.Equal(t, PhaseBody, terr.Phase)
	assert.ErrorIs(t, err, errBusiness)
	assert.Equal(t, []int64{100, 200, 300}, bucketPositions(t, m, key))
}

func TestRun_CommitErrorRollsBack(t *testing.T) {
	m, key, samples := seeded(t)

	err := m.Run(context.Background(), "collide", func(tx store.Tx) error {
		return tx.Move(samples[2].ID, key, 100)
	})

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, PhaseCommit, terr.Phase)
	assert.ErrorIs(t, err, store.ErrPositionConflict)
	assert.Equal(t, []int64{100, 200, 300}, bucketPositions(t, m, key))

	// The write section was released.
	require.NoError(t, m.Run(context.Background(), "after", func(store.Tx) error { return nil }))
}

func TestRun_PanicRollsBackAndRepanics(t *testing.T) {
	m, key, samples := seeded(t)

	assert.PanicsWithValue(t, "boom", func() {
		_ = m.Run(context.Background(), "panic", func(tx store.Tx) error {
			_ = tx.Move(samples[0].ID, key, 999)
			panic("boom")
		})
	})
	assert.Equal(t, []int64{100, 200, 300}, bucketPositions(t, m, key))
	require.NoError(t, m.Run(context.Background(), "after", func(store.Tx) error { return nil }))
}

func TestRun_BeginError(t *testing.T) {
	db := store.NewMemory(store.Options{})
	m := New(db, nil)
	require.NoError(t, db.Close())

	err := m.Run(context.Background(), "closed", func(store.Tx) error { return nil })
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, PhaseBegin, terr.Phase)
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Op: "delete", Phase: PhaseCommit, Err: errBusiness, RollbackErr: errors.New("disk gone")}
	assert.Equal(t, "delete: transaction failed during commit: business rule violated (rollback: disk gone)", err.Error())
	assert.Equal(t, "Phase(7)", Phase(7).String())
}
