package ticket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockConcurrentAccess(t *testing.T) {
	lock := NewLock()
	const numGoroutines = 100
	const iterations = 500
	counter := 0
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for range iterations {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}
	wg.Wait()

	expected := numGoroutines * iterations
	assert.Equal(t, expected, counter, "Expected counter to be %d, got %d", expected, counter)
}

func TestLockFairness(t *testing.T) {
	lock := NewLock()
	const numGoroutines = 50

	// Record the owner ticket observed at each acquisition; FIFO service
	// means the sequence of owners is strictly sequential.
	var owners []uint16
	var mutex sync.Mutex
	var wg sync.WaitGroup

	// Barrier so all goroutines start competing for the lock together.
	var ready sync.WaitGroup
	ready.Add(1)

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()

			ready.Wait()
			lock.Lock()

			mutex.Lock()
			owners = append(owners, owner(lock.word.Load()))
			mutex.Unlock()

			lock.Unlock()
		}()
	}

	ready.Done()
	wg.Wait()

	for i := 1; i < len(owners); i++ {
		assert.Equal(t, owners[i-1]+1, owners[i],
			"owner tickets should be served sequentially: %v", owners)
	}
}

func TestTryLock(t *testing.T) {
	lock := NewLock()

	assert.True(t, lock.TryLock(), "TryLock on a free lock should succeed")
	assert.False(t, lock.TryLock(), "TryLock on a held lock should fail")
	lock.Unlock()
	assert.True(t, lock.isFree())
	assert.True(t, lock.TryLock())
	lock.Unlock()
}

func TestOwnerWraparound(t *testing.T) {
	lock := NewLock()
	// Park both halves just short of the 16-bit boundary; lock traffic must
	// wrap cleanly through it.
	lock.word.Store(uint32(0xfffe)<<nextShift | 0xfffe)

	for i := 0; i < 5; i++ {
		lock.Lock()
		lock.Unlock()
	}
	assert.True(t, lock.isFree())
}

func TestLockStress(t *testing.T) {
	lock := NewLock()
	const numGoroutines = 10
	const iterations = 10000
	var wg sync.WaitGroup

	start := time.Now()
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				lock.Lock()
				time.Sleep(time.Microsecond)
				lock.Unlock()
			}
		}()
	}

	wg.Wait()
	duration := time.Since(start)

	assert.Less(t, duration, 60*time.Second, "Lock stress test took too long: %v", duration)
}
