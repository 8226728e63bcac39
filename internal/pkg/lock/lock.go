// Package lock provides keyed mutexes. Services lock per user for balance
// changes and per game or raffle for state transitions.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned by WithLockContext when the wait runs out.
var ErrLockTimeout = errors.New("lock acquisition timeout")

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed is a set of mutexes indexed by key. Entries are created on first
// use and dropped once nobody holds or waits on them.
type Keyed[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// New creates an empty Keyed lock.
func New[K comparable]() *Keyed[K] {
	return &Keyed[K]{entries: make(map[K]*entry)}
}

func (k *Keyed[K]) acquire(key K) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed[K]) release(key K, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Lock acquires the mutex for key.
func (k *Keyed[K]) Lock(key K) {
	k.acquire(key).mu.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that is not held
// panics, like sync.Mutex.
func (k *Keyed[K]) Unlock(key K) {
	k.mu.Lock()
	e, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key")
	}
	e.mu.Unlock()
	k.release(key, e)
}

// TryLock acquires the mutex for key without blocking.
// Returns true if the lock was acquired.
func (k *Keyed[K]) TryLock(key K) bool {
	e := k.acquire(key)
	if e.mu.TryLock() {
		return true
	}
	k.release(key, e)
	return false
}

// LockWithTimeout waits up to timeout (or until ctx is done) for the mutex.
// Returns true if the lock was acquired.
func (k *Keyed[K]) LockWithTimeout(ctx context.Context, key K, timeout time.Duration) bool {
	e := k.acquire(key)

	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// The waiter still gets the mutex eventually; hand it straight back.
		go func() {
			<-done
			e.mu.Unlock()
			k.release(key, e)
		}()
		return false
	}
}

// WithLock runs fn while holding the mutex for key.
func (k *Keyed[K]) WithLock(key K, fn func() error) error {
	k.Lock(key)
	defer k.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding the mutex for key, giving up with
// ErrLockTimeout if it cannot be acquired within timeout.
func (k *Keyed[K]) WithLockContext(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	if !k.LockWithTimeout(ctx, key, timeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrLockTimeout
	}
	defer k.Unlock(key)

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// IsLocked reports whether key is currently held.
func (k *Keyed[K]) IsLocked(key K) bool {
	k.mu.Lock()
	e, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		return false
	}
	if e.mu.TryLock() {
		e.mu.Unlock()
		return false
	}
	return true
}

// Len returns the number of keys currently tracked.
func (k *Keyed[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// UserLock serializes balance changes per user.
type UserLock = Keyed[int64]

// NewUserLock creates a UserLock.
func NewUserLock() *UserLock {
	return New[int64]()
}

// EntityLock serializes state transitions per game or raffle ID.
type EntityLock = Keyed[string]

// NewEntityLock creates an EntityLock.
func NewEntityLock() *EntityLock {
	return New[string]()
}
