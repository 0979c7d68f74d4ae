package chathub

import "anonpair/backend/internal/models"

// WaitingEntry is a searching identity plus the criteria snapshot taken
// when the search started.
type WaitingEntry struct {
	ID       string
	Criteria models.Criteria
}

// WaitingPool holds participants currently searching, oldest first.
// An identity is queued iff its registry state is StateSearching. Not
// safe for concurrent use; the Coordinator serializes access.
type WaitingPool struct {
	entries map[string]*WaitingEntry
	order   []string
}

func NewWaitingPool() *WaitingPool {
	return &WaitingPool{entries: make(map[string]*WaitingEntry)}
}

// Enqueue adds the identity to the back of the queue. Re-enqueuing an
// already-queued identity replaces its criteria snapshot and keeps its
// original position.
func (w *WaitingPool) Enqueue(id string, c models.Criteria) {
	if e, ok := w.entries[id]; ok {
		e.Criteria = c
		return
	}
	w.entries[id] = &WaitingEntry{ID: id, Criteria: c}
	w.order = append(w.order, id)
}

// Dequeue removes the identity. Absent identities are a no-op.
func (w *WaitingPool) Dequeue(id string) {
	if _, ok := w.entries[id]; !ok {
		return
	}
	delete(w.entries, id)
	for i, queued := range w.order {
		if queued == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

func (w *WaitingPool) Contains(id string) bool {
	_, ok := w.entries[id]
	return ok
}

func (w *WaitingPool) Len() int { return len(w.entries) }

// Candidates returns a snapshot of the queue in insertion order.
// Mutations after the call do not affect the returned slice.
func (w *WaitingPool) Candidates() []WaitingEntry {
	out := make([]WaitingEntry, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, *w.entries[id])
	}
	return out
}
