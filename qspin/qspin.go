// Package qspin implements a compact queue-based spin lock: a 4-byte lock
// word backed by an MCS-style wait queue.
//
// The fast path is a single compare-and-swap on the lock word. Under
// contention, waiters queue up MCS-style so that each spinner busy-waits on
// its own cache line instead of hammering the shared word. The queue tail is
// published through the lock word itself as a compact (proc, node) code, so
// the lock stays exactly 32 bits regardless of pointer size.
//
// Two variants of the word protocol are provided:
//
//   - New returns a lock using the compact protocol: the queue code lives in
//     its own half-word, a pending byte gives two-contender acquisitions a
//     fast lane that skips the queue entirely, and a lone queued waiter can
//     take a handoff through the pending byte.
//   - NewGeneric returns a lock using the generic protocol: the queue tail is
//     published with a full-word exchange that always writes the lock bit,
//     so on a word that was unlocked it takes ownership as a side effect
//     ("accidental steal"), which the slow path reconciles.
//
// Both variants share the same slow path; they differ only in the small set
// of word primitives behind it.
//
// Example usage:
//
//	lock := qspin.New()
//
//	lock.Lock()
//	// ... critical section ...
//	lock.Unlock()
//
//	if lock.TryLock() {
//	    // ... critical section ...
//	    lock.Unlock()
//	}
//
// Lock pins the calling goroutine to its processor for the duration of the
// hold, the way a kernel spin lock disables preemption. Consequences: Lock
// and Unlock must be called from the same goroutine, the critical section
// must not block or yield, and it should be short. This is a busy-waiting
// primitive; if the critical section can exceed a few microseconds, use
// sync.Mutex instead.
package qspin

import "sync/atomic"

// Lock word layout:
//
//	Bit  0    : lock bit
//	Bit  8    : pending bit (compact protocol only)
//	Bits 8-31 : queue code (generic protocol)
//	Bits 16-31: queue code (compact protocol)
//
// A queue code of 0 means nobody is waiting.
const (
	locked  uint32 = 1 << 0
	pending uint32 = 1 << 8

	genericTailShift = 8
	compactTailShift = 16
)

// Lock is a queue-based spin lock. The zero value is not ready to use;
// create locks with New or NewGeneric.
type Lock struct {
	word atomic.Uint32
	arch arch
}

// New returns a lock using the compact word protocol: half-word queue code,
// pending-byte fast lane for two contenders.
func New() *Lock { return &Lock{arch: compactArch{}} }

// NewGeneric returns a lock using the generic word protocol: full-word queue
// code exchange with accidental-steal reconciliation. It exists for
// comparison and for stressing the reconciliation path; New is the better
// default.
func NewGeneric() *Lock { return &Lock{arch: genericArch{}} }

// TryLock attempts to acquire the lock without waiting. On success the
// calling goroutine is pinned to its processor until Unlock.
func (l *Lock) TryLock() bool {
	procPin()
	if l.word.Load() == 0 && l.word.CompareAndSwap(0, locked) {
		return true
	}
	procUnpin()
	return false
}

// Lock acquires the lock, spinning until it is available. The calling
// goroutine is pinned to its processor until Unlock; Unlock must be called
// from the same goroutine.
func (l *Lock) Lock() {
	proc := procPin()
	qsval := l.word.Load()
	if qsval == 0 && l.word.CompareAndSwap(0, locked) {
		return
	}
	l.slowpath(qsval, proc)
}

// Unlock releases the lock and unpins the calling goroutine.
func (l *Lock) Unlock() {
	l.word.And(^locked)
	procUnpin()
}

// IsLocked reports whether the lock is currently held by some goroutine.
func (l *Lock) IsLocked() bool { return l.word.Load()&locked != 0 }

// tryLockFast is the uncontended acquisition attempt: expect a completely
// empty word, set the lock bit.
func (l *Lock) tryLockFast() bool {
	return l.word.Load() == 0 && l.word.CompareAndSwap(0, locked)
}

// release clears the lock bit without unpinning. Used by the slow path when
// it must give back an accidentally stolen lock.
func (l *Lock) release() { l.word.And(^locked) }
