package notes

import (
	"log/slog"
	"sync/atomic"
)

// IndexGuard wraps a [Store] and makes save and search operations non-fatal.
// If the underlying index fails, saves are dropped and searches return empty
// results, with warnings logged instead of errors propagated.
//
// Notes are study aids, not learning state, so a broken index must never
// fail a session teardown or a turn. The IsDegraded method reports whether
// the index is currently experiencing failures.
//
// IndexGuard implements [Store].
//
// All methods are safe for concurrent use.
type IndexGuard struct {
	store    Store
	degraded atomic.Bool
}

// NewIndexGuard creates a new [IndexGuard] wrapping the given store.
func NewIndexGuard(store Store) *IndexGuard {
	return &IndexGuard{store: store}
}

// Save attempts to index a note. On failure the note is dropped, the error
// is logged and the index is marked as degraded. On success the degraded
// flag is cleared.
func (g *IndexGuard) Save(note Note) error {
	if err := g.store.Save(note); err != nil {
		g.degraded.Store(true)
		slog.Warn("notes guard: Save failed, dropping note",
			"note_id", note.ID,
			"category", note.Category,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// SaveAll attempts to index a batch of notes. On failure the batch is
// dropped, the error is logged and the index is marked as degraded.
func (g *IndexGuard) SaveAll(notes []Note) error {
	if err := g.store.SaveAll(notes); err != nil {
		g.degraded.Store(true)
		slog.Warn("notes guard: SaveAll failed, dropping batch",
			"count", len(notes),
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// Search attempts a search. On failure an empty slice is returned and the
// index is marked as degraded.
func (g *IndexGuard) Search(req SearchRequest) ([]Result, error) {
	results, err := g.store.Search(req)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("notes guard: Search failed, returning empty",
			"query", req.Query,
			"error", err,
		)
		return []Result{}, nil
	}
	g.degraded.Store(false)
	return results, nil
}

// Count delegates to the underlying store. On failure the error is logged
// and 0 is returned; the index is marked as degraded.
func (g *IndexGuard) Count() (uint64, error) {
	n, err := g.store.Count()
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("notes guard: Count failed, returning 0", "error", err)
		return 0, nil
	}
	g.degraded.Store(false)
	return n, nil
}

// Close closes the underlying store. Unlike the other operations, close
// errors propagate.
func (g *IndexGuard) Close() error {
	return g.store.Close()
}

// IsDegraded reports whether the index is currently operating in degraded
// mode (i.e., the most recent operation on the underlying store failed).
func (g *IndexGuard) IsDegraded() bool {
	return g.degraded.Load()
}

// Compile-time check that IndexGuard satisfies Store.
var _ Store = (*IndexGuard)(nil)
