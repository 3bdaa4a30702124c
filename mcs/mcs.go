// Package mcs implements the Mellor-Crummey Scott (MCS) lock, the queue-based
// spin lock this module's qspin package descends from. Waiters form an
// explicit linked queue and each spins on a flag in its own node, so handoff
// touches one waiter's memory instead of invalidating a shared word across
// every spinner.
//
// Unlike qspin, the queue is linked by pointers and the lock state is the
// tail pointer itself, so callers supply the queue node:
//
//	lock := mcs.NewLock()
//	node := &mcs.QNode{}
//
//	lock.Lock(node)
//	// ... critical section ...
//	lock.Unlock(node)
//
// A node belongs to exactly one acquisition at a time: it may be reused for
// the next Lock call, but never shared between goroutines that might hold
// the lock concurrently.
package mcs

import (
	"runtime"
	"sync/atomic"
)

// QNode is one waiter's entry in the queue. blocked is the local spin flag;
// next is written by the successor when it links itself in.
type QNode struct {
	next    atomic.Pointer[QNode]
	blocked atomic.Bool
}

// Lock is the MCS lock: just the queue tail. A nil tail means the lock is
// free.
type Lock struct {
	tail atomic.Pointer[QNode]
}

// NewLock creates a new MCS lock.
func NewLock() *Lock { return new(Lock) }

// TryLock attempts to acquire the lock without waiting: it can only succeed
// when the queue is empty. Returns true if the lock was acquired.
func (l *Lock) TryLock(node *QNode) bool {
	node.next.Store(nil)
	node.blocked.Store(false)
	return l.tail.CompareAndSwap(nil, node)
}

// Lock acquires the lock, queueing behind the current tail if there is one.
func (l *Lock) Lock(node *QNode) {
	node.next.Store(nil)
	node.blocked.Store(true)

	pred := l.tail.Swap(node)
	if pred == nil {
		// Empty queue: the lock is ours.
		return
	}

	// Link in behind the predecessor, then spin on our own flag until it
	// hands the lock over.
	pred.next.Store(node)
	for node.blocked.Load() {
		runtime.Gosched()
	}
}

// Unlock releases the lock, handing it to the successor if one is queued.
func (l *Lock) Unlock(node *QNode) {
	next := node.next.Load()
	if next == nil {
		// No visible successor. If we are still the tail, emptying the
		// queue releases the lock.
		if l.tail.CompareAndSwap(node, nil) {
			return
		}
		// A successor has swapped itself in but not linked yet; wait for
		// the link to appear.
		for next = node.next.Load(); next == nil; next = node.next.Load() {
			runtime.Gosched()
		}
	}
	next.blocked.Store(false)
}

// IsFree reports whether the lock is currently free.
func (l *Lock) IsFree() bool { return l.tail.Load() == nil }
