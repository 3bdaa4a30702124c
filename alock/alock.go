// Package alock implements an array-based queue lock: a bounded ring of
// grant flags, one per waiter slot, each on its own cache line. Arriving
// goroutines take the next slot and spin on that slot's flag alone, so a
// release invalidates exactly one waiter's cache line. Acquisition order is
// FIFO around the ring.
//
// The ring size bounds how many goroutines may contend at once. More
// concurrent contenders than slots would alias onto the same flag; size the
// lock for the worst case.
//
// Acquisition hands back the slot that was taken, and release needs it
// returned:
//
//	lock := alock.NewLock(8)
//
//	slot := lock.Lock()
//	// ... critical section ...
//	lock.Unlock(slot)
package alock

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// flag is one ring slot's grant flag, padded so neighbouring slots never
// share a cache line. Sharing lines is the classic array-lock mistake: it
// turns every handoff into an invalidation of several waiters' lines.
type flag struct {
	granted atomic.Uint32
	_       cpu.CacheLinePad
}

// Lock is an array-based queue lock for up to len(ring) concurrent
// contenders.
type Lock struct {
	ring []flag
	tail atomic.Uint32
	size uint32
}

// NewLock creates an array lock with the given number of waiter slots.
func NewLock(slots uint32) *Lock {
	l := &Lock{ring: make([]flag, slots), size: slots}
	l.ring[0].granted.Store(1) // The first taker acquires immediately.
	return l
}

// Lock acquires the lock and returns the slot held; pass it to Unlock.
func (l *Lock) Lock() uint32 {
	slot := (l.tail.Add(1) - 1) % l.size
	for l.ring[slot].granted.Load() == 0 {
		runtime.Gosched()
	}
	return slot
}

// Unlock releases the lock held at slot, granting the next slot in the ring.
func (l *Lock) Unlock(slot uint32) {
	l.ring[slot].granted.Store(0)
	l.ring[(slot+1)%l.size].granted.Store(1)
}

// TryLock attempts to acquire the lock without waiting. On success it
// returns the slot held and true.
func (l *Lock) TryLock() (uint32, bool) {
	v := l.tail.Load()
	slot := v % l.size
	if l.ring[slot].granted.Load() == 1 && l.tail.CompareAndSwap(v, v+1) {
		return slot, true
	}
	return 0, false
}
