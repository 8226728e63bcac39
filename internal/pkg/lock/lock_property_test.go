package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty checks that concurrent read-modify-write
// cycles under the same key end with the sequential result.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(t, "initial")
		amounts := rapid.SliceOfN(rapid.Int64Range(-500, 500), 2, 20).Draw(t, "amounts")
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")

		expected := initial
		for _, a := range amounts {
			expected += a
		}

		ul := NewUserLock()
		balance := initial

		var wg sync.WaitGroup
		wg.Add(len(amounts))
		for _, a := range amounts {
			go func(amount int64) {
				defer wg.Done()
				ul.Lock(userID)
				defer ul.Unlock(userID)
				balance += amount
			}(a)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d", expected, balance)
		}
		if ul.Len() != 0 {
			t.Fatalf("expected no tracked keys after release, got %d", ul.Len())
		}
	})
}

// TestWithLockFunctionProperty checks that WithLock serializes callers of
// the same entity.
func TestWithLockFunctionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		id := rapid.StringMatching(`[a-f0-9]{8}`).Draw(t, "id")

		el := NewEntityLock()
		calls := 0

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = el.WithLock(id, func() error {
					calls++
					return nil
				})
			}()
		}
		wg.Wait()

		if calls != numOps {
			t.Fatalf("expected %d calls, got %d", numOps, calls)
		}
	})
}

// TestIndependentKeysProperty checks that keys do not share a mutex.
func TestIndependentKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numKeys := rapid.IntRange(2, 10).Draw(t, "numKeys")
		ul := NewUserLock()

		for i := 1; i <= numKeys; i++ {
			ul.Lock(int64(i))
		}
		for i := 1; i <= numKeys; i++ {
			if !ul.IsLocked(int64(i)) {
				t.Fatalf("key %d should be locked", i)
			}
		}
		if ul.TryLock(int64(numKeys + 1)) {
			ul.Unlock(int64(numKeys + 1))
		} else {
			t.Fatal("unrelated key should be free")
		}
		for i := 1; i <= numKeys; i++ {
			ul.Unlock(int64(i))
		}
	})
}

// TestTryLockSingleHolderProperty checks that at most one TryLock caller
// holds the key at a time.
func TestTryLockSingleHolderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attempts := rapid.IntRange(5, 20).Draw(t, "attempts")
		el := NewEntityLock()

		var holders, maxHolders atomic.Int32
		var wg sync.WaitGroup
		wg.Add(attempts)
		start := make(chan struct{})

		for i := 0; i < attempts; i++ {
			go func() {
				defer wg.Done()
				<-start
				if el.TryLock("game") {
					n := holders.Add(1)
					for {
						m := maxHolders.Load()
						if n <= m || maxHolders.CompareAndSwap(m, n) {
							break
						}
					}
					holders.Add(-1)
					el.Unlock("game")
				}
			}()
		}
		close(start)
		wg.Wait()

		if maxHolders.Load() > 1 {
			t.Fatalf("more than one holder at once: %d", maxHolders.Load())
		}
		if el.IsLocked("game") {
			t.Fatal("key should be free after all attempts")
		}
	})
}

func TestLockWithTimeout(t *testing.T) {
	el := NewEntityLock()
	el.Lock("g1")

	ok := el.LockWithTimeout(context.Background(), "g1", 20*time.Millisecond)
	assert.False(t, ok)

	el.Unlock("g1")
	assert.Eventually(t, func() bool { return !el.IsLocked("g1") }, time.Second, 5*time.Millisecond)

	ok = el.LockWithTimeout(context.Background(), "g1", time.Second)
	require.True(t, ok)
	el.Unlock("g1")
}

func TestWithLockContext(t *testing.T) {
	el := NewEntityLock()
	el.Lock("g1")

	err := el.WithLockContext(context.Background(), "g1", 20*time.Millisecond, func() error { return nil })
	assert.ErrorIs(t, err, ErrLockTimeout)

	el.Unlock("g1")

	sentinel := errors.New("boom")
	assert.Eventually(t, func() bool {
		return errors.Is(el.WithLockContext(context.Background(), "g1", time.Second, func() error { return sentinel }), sentinel)
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = el.WithLockContext(ctx, "g2", time.Second, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnlockWithoutLockPanics(t *testing.T) {
	ul := NewUserLock()
	assert.Panics(t, func() { ul.Unlock(42) })
}
