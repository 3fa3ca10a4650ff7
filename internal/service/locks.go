// Package service implements the business logic: users, the account
// ledger, portfolios and wealth aggregation.
package service

import "sync"

// keyedLocks serializes operations per key (account ID, user ID). The
// database additionally locks rows FOR UPDATE, but serializing in the
// service keeps the guarantee uniform across repository implementations,
// including the in-memory ones used in tests.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*entryLock)}
}

// Lock acquires the lock for key, creating it on first use.
func (k *keyedLocks) Lock(key string) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &entryLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()
}

// Unlock releases the lock for key, discarding it when no goroutine is
// waiting so the map does not grow with every key ever seen.
func (k *keyedLocks) Unlock(key string) {
	k.mu.Lock()
	lock := k.locks[key]
	lock.refs--
	if lock.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	lock.mu.Unlock()
}

// LockPair acquires two keys in deterministic order to avoid deadlock
// between concurrent opposing transfers. Equal keys are locked once.
func (k *keyedLocks) LockPair(a, b string) {
	if a == b {
		k.Lock(a)
		return
	}
	if b < a {
		a, b = b, a
	}
	k.Lock(a)
	k.Lock(b)
}

// UnlockPair releases keys acquired with LockPair.
func (k *keyedLocks) UnlockPair(a, b string) {
	if a == b {
		k.Unlock(a)
		return
	}
	if b < a {
		a, b = b, a
	}
	k.Unlock(b)
	k.Unlock(a)
}
