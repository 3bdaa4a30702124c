// Package ticket provides a fair mutual exclusion lock using a ticket-based
// queuing system. Arriving goroutines take a ticket by incrementing one half
// of a single 32-bit word and are served in ticket order, giving strict FIFO
// acquisition. Waiters spin adaptively, proportionally to their distance from
// the front of the queue, and fall back to sleeping when far back.
//
// This is the classic compact spin lock layout: the owner and next-ticket
// counters share one word, so the uncontended acquisition is a single
// atomic add. Under heavy contention every waiter still spins on the
// same word; see the qspin package for the queue-based design that avoids
// that.
package ticket

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Lock is a ticket spin lock. The low half of the word holds the ticket
// currently being served (the owner), the high half the next ticket to hand
// out. The lock is free when the two halves are equal. The zero value is an
// unlocked lock.
type Lock struct {
	word atomic.Uint32
}

// NewLock creates a new ticket lock.
func NewLock() *Lock { return new(Lock) }

const nextShift = 16

func owner(v uint32) uint16 { return uint16(v) }
func next(v uint32) uint16  { return uint16(v >> nextShift) }

// TryLock attempts to acquire the lock without waiting: take a ticket only
// if it would be served immediately. Returns true if the lock was acquired.
func (t *Lock) TryLock() bool {
	v := t.word.Load()
	if owner(v) != next(v) {
		return false
	}
	return t.word.CompareAndSwap(v, v+1<<nextShift)
}

const (
	baseWait = 10
	nearWait = 5

	// Beyond this many tickets from the front, spinning is pointless.
	sleepDistance = 20
)

// Lock acquires the lock, waiting for our ticket to be served. Waiters spin
// in proportion to their queue distance so that the goroutine about to be
// served polls the most often, and sleep outright when far back.
func (t *Lock) Lock() {
	me := next(t.word.Add(1<<nextShift)) - 1

	if owner(t.word.Load()) == me {
		return
	}

	wait := uint16(baseWait)
	distancePrev := uint16(1)
	for {
		cur := owner(t.word.Load())
		if cur == me {
			return
		}
		distance := me - cur // wraps correctly on uint16

		if distance > 1 {
			if distance != distancePrev {
				distancePrev = distance
				wait = baseWait
			}
			for range int(distance) * int(wait) {
				// Busy wait.
			}
			runtime.Gosched()
		} else {
			for range nearWait {
				// Busy wait.
			}
		}

		if distance > sleepDistance {
			time.Sleep(time.Millisecond)
		}
	}
}

// Unlock releases the lock, serving the next ticket. The owner half must be
// bumped without disturbing concurrent ticket takers in the high half.
func (t *Lock) Unlock() {
	for {
		v := t.word.Load()
		if t.word.CompareAndSwap(v, v&^uint32(0xffff)|uint32(owner(v)+1)) {
			return
		}
	}
}

// isFree reports whether the lock is currently free.
func (t *Lock) isFree() bool {
	v := t.word.Load()
	return owner(v) == next(v)
}
