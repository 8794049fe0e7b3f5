package history

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(op string) Entry { return Entry{Op: op} }

func TestUndoRedo(t *testing.T) {
	h := New(0)
	h.Record(entry("a"))
	h.Record(entry("b"))

	var applied []string
	apply := func(e Entry) error {
		applied = append(applied, e.Op)
		return nil
	}

	e, err := h.Undo(apply)
	require.NoError(t, err)
	assert.Equal(t, "b", e.Op)

	undo, redo := h.Len()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 1, redo)

	e, err = h.Redo(apply)
	require.NoError(t, err)
	assert.Equal(t, "b", e.Op)
	assert.Equal(t, []string{"b", "b"}, applied)

	_, err = h.Redo(apply)
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestRecordClearsRedo(t *testing.T) {
	h := New(0)
	h.Record(entry("a"))
	_, err := h.Undo(func(Entry) error { return nil })
	require.NoError(t, err)

	h.Record(entry("b"))
	_, redo := h.Len()
	assert.Zero(t, redo)
}

func TestFailedApplyKeepsStacks(t *testing.T) {
	h := New(0)
	h.Record(entry("a"))
	boom := errors.New("boom")

	_, err := h.Undo(func(Entry) error { return boom })
	assert.ErrorIs(t, err, boom)
	undo, redo := h.Len()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 0, redo)
}

func TestLimit(t *testing.T) {
	h := New(2)
	h.Record(entry("a"))
	h.Record(entry("b"))
	h.Record(entry("c"))

	undo, _ := h.Len()
	assert.Equal(t, 2, undo)

	var ops []string
	for {
		e, err := h.Undo(func(Entry) error { return nil })
		if errors.Is(err, ErrNothingToUndo) {
			break
		}
		ops = append(ops, e.Op)
	}
	assert.Equal(t, []string{"c", "b"}, ops)

	h.Clear()
	undo, redo := h.Len()
	assert.Zero(t, undo+redo)
}
