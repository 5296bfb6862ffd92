// Package keylock provides one mutex per key so work on different keys never
// waits on each other.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Lock blocks until key is free and returns the function releasing it.
func (that *KeyLock) Lock(key string) func() {
	that.mu.Lock()
	e, ok := that.locks[key]
	if !ok {
		e = &entry{}
		that.locks[key] = e
	}
	e.refs++
	that.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		that.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(that.locks, key)
		}
		that.mu.Unlock()
	}
}

// Len is the number of keys currently held or awaited.
func (that *KeyLock) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return len(that.locks)
}
