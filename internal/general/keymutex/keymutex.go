// Package keymutex provides per-key exclusive sections. The dispatch engine
// uses it to serialize all mutating operations on a single ride id while
// letting unrelated rides proceed fully in parallel.
package keymutex

import "sync"

// KeyMutex hands out one mutex per key. Entries are reference-counted and
// removed once the last holder unlocks, so the map does not grow with the
// total number of rides ever seen.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*entry)}
}

// Lock acquires the exclusive section for key, blocking while another
// goroutine holds it.
func (km *KeyMutex) Lock(key string) {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = &entry{}
		km.locks[key] = e
	}
	e.refs++
	km.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the exclusive section for key.
func (km *KeyMutex) Unlock(key string) {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		km.mu.Unlock()
		panic("keymutex: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	e.mu.Unlock()
}

// WithLock runs fn while holding the exclusive section for key.
func (km *KeyMutex) WithLock(key string, fn func()) {
	km.Lock(key)
	defer km.Unlock(key)
	fn()
}
