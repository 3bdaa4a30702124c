package alock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockConcurrentAccess(t *testing.T) {
	const numGoroutines = 16
	const iterations = 1000
	lock := NewLock(numGoroutines)
	counter := 0
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for range iterations {
				slot := lock.Lock()
				counter++
				lock.Unlock(slot)
			}
		}()
	}
	wg.Wait()

	expected := numGoroutines * iterations
	assert.Equal(t, expected, counter, "Expected counter to be %d, got %d", expected, counter)
}

func TestSlotsAdvanceAroundRing(t *testing.T) {
	lock := NewLock(4)

	// Sequential acquisitions walk the ring in order and wrap.
	for i := uint32(0); i < 10; i++ {
		slot := lock.Lock()
		assert.Equal(t, i%4, slot)
		lock.Unlock(slot)
	}
}

func TestTryLock(t *testing.T) {
	lock := NewLock(4)

	slot, ok := lock.TryLock()
	assert.True(t, ok, "TryLock on a free lock should succeed")

	_, ok2 := lock.TryLock()
	assert.False(t, ok2, "TryLock on a held lock should fail")

	lock.Unlock(slot)
	slot2, ok3 := lock.TryLock()
	assert.True(t, ok3)
	assert.Equal(t, uint32(1), slot2, "the next slot around the ring")
	lock.Unlock(slot2)
}
