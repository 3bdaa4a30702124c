package mcs

import (
	"sync"
	"sync/atomic"
	"testing"

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
			node := &QNode{}
			for range iterations {
				lock.Lock(node)
				counter++
				lock.Unlock(node)
			}
		}()
	}
	wg.Wait()

	expected := numGoroutines * iterations
	assert.Equal(t, expected, counter, "Expected counter to be %d, got %d", expected, counter)
}

func TestTryLock(t *testing.T) {
	lock := NewLock()
	n1, n2 := &QNode{}, &QNode{}

	assert.True(t, lock.TryLock(n1), "TryLock on a free lock should succeed")
	assert.False(t, lock.IsFree())
	assert.False(t, lock.TryLock(n2), "TryLock on a held lock should fail")
	lock.Unlock(n1)
	assert.True(t, lock.IsFree())
}

// TestFIFOOrder stages waiters one at a time so each is visibly queued
// before the next arrives, then checks they acquire in that order.
func TestFIFOOrder(t *testing.T) {
	lock := NewLock()
	const waiters = 5

	holder := &QNode{}
	lock.Lock(holder)

	var order [waiters]int32
	var pos atomic.Int32
	var wg sync.WaitGroup
	started := make(chan struct{})

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int32) {
			node := &QNode{}
			// Publish ourselves as tail before reporting started, so the
			// staging below fixes the queue order.
			node.next.Store(nil)
			node.blocked.Store(true)
			pred := lock.tail.Swap(node)
			started <- struct{}{}
			if pred != nil {
				pred.next.Store(node)
				for node.blocked.Load() {
				}
			}
			order[pos.Add(1)-1] = id
			lock.Unlock(node)
			wg.Done()
		}(int32(i))
		<-started
	}

	lock.Unlock(holder)
	wg.Wait()

	for i := int32(0); i < waiters; i++ {
		assert.Equal(t, i, order[i], "waiters should acquire in queue order: %v", order)
	}
}

func TestNodeReuse(t *testing.T) {
	lock := NewLock()
	node := &QNode{}

	for i := 0; i < 100; i++ {
		lock.Lock(node)
		lock.Unlock(node)
	}
	assert.True(t, lock.IsFree())
}
