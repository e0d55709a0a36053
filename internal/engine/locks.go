package engine

import "sync"

// learnerKey identifies one learner+language lock slot.
type learnerKey struct {
	learnerID string
	language  string
}

// lockEntry is one live mutex with a count of holders and waiters.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serialises critical sections per learner+language pair.
// Distinct pairs proceed concurrently; entries are dropped once the last
// holder releases, so the map does not grow with learner count.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[learnerKey]*lockEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[learnerKey]*lockEntry)}
}

// lock blocks until the pair's mutex is held and returns the release func.
func (k *keyedMutex) lock(learnerID, language string) func() {
	key := learnerKey{learnerID: learnerID, language: language}

	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
