package qspin

import "sync/atomic"

// arch is the set of word primitives the slow path is written against. The
// two implementations correspond to the two ways the queue code can be
// published into the 32-bit word: a flag-preserving half-word exchange
// (compactArch) or a full-word exchange that may clobber the lock bit
// (genericArch).
//
// All methods operate in "queue code space": the (proc+1)<<2|idx encoding,
// without the shift that places it inside the word.
type arch interface {
	// quick attempts the two-contender fast lane, if the protocol has one.
	// qsval is the word snapshot that defeated the fast path. Returns true
	// with the lock held.
	quick(w *atomic.Uint32, qsval uint32) bool

	// hasTail reports whether the snapshot carries a queue code.
	hasTail(qsval uint32) bool

	// xchgTail publishes q as the new queue tail and returns the previous
	// tail. stole reports that the exchange also set the lock bit on a word
	// that was unlocked, transferring ownership to the caller as a side
	// effect; only genericArch can report it.
	xchgTail(w *atomic.Uint32, q uint32) (prev uint32, stole bool)

	// claimAfterSteal is the reconciliation for a stolen lock at the head of
	// the queue: compare-and-swap from "tail=q, lock bit set by the steal"
	// to "locked, empty queue". Failure means a waiter has queued behind the
	// caller in the meantime.
	claimAfterSteal(w *atomic.Uint32, q uint32) bool

	// trylockAndClrTail is used by a waiter that is both head and tail:
	// compare-and-swap from "unlocked, tail=q" to "locked, empty queue".
	trylockAndClrTail(w *atomic.Uint32, q uint32) bool

	// trylockUnfair makes one attempt to set the lock bit regardless of the
	// queue state.
	trylockUnfair(w *atomic.Uint32) bool

	// getLockTail reads the word. status > 0 means the lock is held;
	// status == 0 means it is free and tail is the current queue code;
	// status < 0 means the protocol completed the acquisition on its own
	// (ownership arrived through the pending byte) and the caller holds the
	// lock with its queue entry already vacated.
	getLockTail(w *atomic.Uint32, myCode uint32) (status int, tail uint32)
}

// trylockSet makes one attempt to set the lock bit if it is currently clear,
// leaving the rest of the word alone.
func trylockSet(w *atomic.Uint32) bool {
	v := w.Load()
	return v&locked == 0 && w.CompareAndSwap(v, v|locked)
}

// genericArch publishes the tail with a full 32-bit exchange. The exchange
// unconditionally writes the lock bit alongside the new tail, so when the
// word happened to be unlocked the caller ends up holding the lock; the slow
// path reconciles that. No pending byte, no quick path.
type genericArch struct{}

func (genericArch) quick(*atomic.Uint32, uint32) bool { return false }

func (genericArch) hasTail(qsval uint32) bool { return qsval>>genericTailShift != 0 }

func (genericArch) xchgTail(w *atomic.Uint32, q uint32) (uint32, bool) {
	old := w.Swap(q<<genericTailShift | locked)
	return (old &^ locked) >> genericTailShift, old&locked == 0
}

func (genericArch) claimAfterSteal(w *atomic.Uint32, q uint32) bool {
	return w.CompareAndSwap(q<<genericTailShift|locked, locked)
}

func (genericArch) trylockAndClrTail(w *atomic.Uint32, q uint32) bool {
	return w.CompareAndSwap(q<<genericTailShift, locked)
}

func (genericArch) trylockUnfair(w *atomic.Uint32) bool { return trylockSet(w) }

func (genericArch) getLockTail(w *atomic.Uint32, _ uint32) (int, uint32) {
	v := w.Load()
	return int(v & locked), (v &^ locked) >> genericTailShift
}

// compactArch keeps the queue code in the high half-word and exchanges it
// with a CAS loop that leaves the low flag bytes untouched, so a tail
// publish can never steal the lock. The freed-up second byte carries the
// pending bit: a single contender can wait there without touching the queue.
type compactArch struct{}

// quick is the two-contender fast lane. Entered only when the snapshot shows
// no queue and at most one flag: a bare holder, or a bare pending peer whose
// holder just left. Exchanges the flag half-word with locked|pending and
// dispatches on what was there.
//
// The old == pending outcome takes the lock ahead of the pending peer. That
// peer keeps its claim and acquires on the next release, so the unfairness
// is bounded by the single pending slot.
func (compactArch) quick(w *atomic.Uint32, qsval uint32) bool {
	if qsval != locked && qsval != pending {
		return false
	}
	old := xchgFlags(w, locked|pending)
	switch old {
	case 0:
		// Clean grab: nobody held the lock after all. The pending claim
		// was never needed, give it back.
		w.And(^pending)
		return true
	case locked:
		// The pending slot is ours; wait out the holder, then convert the
		// claim into ownership.
		pendingAcquire(w)
		return true
	case pending:
		// A peer holds the pending slot but the lock byte was clear, so
		// the exchange above took the lock. Keep it; the peer's claim
		// stands and it acquires on our release.
		return true
	}
	// Both a holder and a pending peer: the fast lane is full.
	return false
}

func (compactArch) hasTail(qsval uint32) bool { return qsval>>compactTailShift != 0 }

func (compactArch) xchgTail(w *atomic.Uint32, q uint32) (uint32, bool) {
	for {
		v := w.Load()
		if w.CompareAndSwap(v, v&(locked|pending)|q<<compactTailShift) {
			return v >> compactTailShift, false
		}
	}
}

// claimAfterSteal is unreachable: the compact tail exchange preserves the
// lock bit, so xchgTail never reports a steal.
func (compactArch) claimAfterSteal(*atomic.Uint32, uint32) bool { return false }

func (compactArch) trylockAndClrTail(w *atomic.Uint32, q uint32) bool {
	return w.CompareAndSwap(q<<compactTailShift, locked)
}

func (compactArch) trylockUnfair(w *atomic.Uint32) bool { return trylockSet(w) }

// getLockTail additionally recognizes the word that reads "held, and the
// only queued waiter is me". In that state the waiter can vacate the queue
// and finish the wait in the pending byte instead, which lets a later
// contender find an empty queue and take the fast lane. The acquisition then
// completes here and is reported as status < 0.
func (compactArch) getLockTail(w *atomic.Uint32, myCode uint32) (int, uint32) {
	v := w.Load()
	if v == myCode<<compactTailShift|locked {
		if w.CompareAndSwap(v, locked|pending) {
			pendingAcquire(w)
			return -1, 0
		}
		v = w.Load()
	}
	return int(v & locked), v >> compactTailShift
}

// xchgFlags atomically exchanges the low flag half-word, leaving the queue
// code untouched, and returns the previous flags.
func xchgFlags(w *atomic.Uint32, flags uint32) uint32 {
	for {
		v := w.Load()
		if w.CompareAndSwap(v, v&^(locked|pending)|flags) {
			return v & (locked | pending)
		}
	}
}

// pendingAcquire completes an acquisition for the owner of the pending
// claim: wait until the lock byte clears, then take the lock and retire the
// claim in one CAS. An unfair grab by another contender between the two
// steps just sends us around the loop again.
func pendingAcquire(w *atomic.Uint32) {
	for {
		v := w.Load()
		if v&locked != 0 {
			cpuRelax()
			continue
		}
		if w.CompareAndSwap(v, v&^pending|locked) {
			return
		}
	}
}
