// Package history keeps bounded undo and redo stacks of bucket snapshots.
//
// Each entry holds the full state of every bucket an operation touched,
// before and after. Undo restores Before and redo restores After, so the
// result is exact even when the operation redistributed whole buckets.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/peteb4ker/romper-sub005/model"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DefaultLimit is the number of undo entries kept when none is configured.
const DefaultLimit = 100

// Entry is one undoable operation.
type Entry struct {
	Op     string
	At     time.Time
	Before []model.BucketState
	After  []model.BucketState
}

// History is safe for concurrent use.
type History struct {
	mu    sync.Mutex
	limit int
	undo  []Entry
	redo  []Entry
}

// New returns a history holding at most limit undo entries. A limit <= 0
// selects DefaultLimit.
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Record pushes e onto the undo stack and clears the redo stack.
func (h *History) Record(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.undo = append(h.undo, e)
	if over := len(h.undo) - h.limit; over > 0 {
		h.undo = append(h.undo[:0:0], h.undo[over:]...)
	}
	h.redo = nil
}

// Undo calls apply with the newest undo entry. The entry moves to the redo
// stack only if apply succeeds; otherwise both stacks are left unchanged.
func (h *History) Undo(apply func(Entry) error) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undo) == 0 {
		return Entry{}, ErrNothingToUndo
	}
	e := h.undo[len(h.undo)-1]
	if err := apply(e); err != nil {
		return e, err
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, e)
	return e, nil
}

// Redo calls apply with the newest redo entry. The entry moves back to the
// undo stack only if apply succeeds.
func (h *History) Redo(apply func(Entry) error) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redo) == 0 {
		return Entry{}, ErrNothingToRedo
	}
	e := h.redo[len(h.redo)-1]
	if err := apply(e); err != nil {
		return e, err
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, e)
	return e, nil
}

// Len returns the sizes of the undo and redo stacks.
func (h *History) Len() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}

// Clear drops every entry.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = nil
	h.redo = nil
}
