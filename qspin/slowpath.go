package qspin

// slowpath acquires the lock after the fast path lost its race. qsval is the
// word snapshot the fast path observed; proc is the pinned processor.
//
// The shape: try the protocol's quick lane, then join the MCS queue — take a
// node, publish ourselves as the new tail, spin on our own wait flag until
// the predecessor hands the head position over, then spin on the lock word
// until the holder leaves. On exit the lock is held and the node returned.
func (l *Lock) slowpath(qsval uint32, proc int) {
	if l.arch.quick(&l.word, qsval) {
		return
	}

	node, idx := getQnode(proc)
	if node == nil {
		// Deeper nesting than the pool covers. Not a correctness problem,
		// but it should never happen in practice: warn, then busy-spin on
		// the lock bit without queueing, giving up fairness.
		warnPoolExhausted(proc)
		for !l.arch.trylockUnfair(&l.word) {
			cpuRelax()
		}
		return
	}
	myCode := encodeQcode(proc, idx)

	node.wait.Store(1)
	node.next.Store(nil)

	// The holder may have left while we set up. Worth one more try before
	// queueing, but only if nobody was queued at the snapshot — cutting in
	// front of a queue here would defeat the FIFO discipline.
	if !l.arch.hasTail(qsval) && l.tryLockFast() {
		putQnode(proc)
		return
	}

	prev, stole := l.arch.xchgTail(&l.word, myCode)
	if stole {
		// The full-word exchange found the lock bit clear and set it:
		// ownership just transferred to us as a side effect.
		if prev == 0 {
			// Nobody was queued, so the lock is rightfully ours. Retire
			// the queue entry and keep it.
			if l.arch.claimAfterSteal(&l.word, myCode) {
				putQnode(proc)
				return
			}
			// A waiter queued behind us before the CAS; it inherits the
			// head position once we pass through.
			l.notifyNext(node)
			putQnode(proc)
			return
		}
		// Waiters are queued ahead of us. Give the lock back so the real
		// head can take it, then wait our turn like anyone else.
		l.release()
	}

	if prev != 0 {
		// Not the head: link in behind the predecessor and spin on our own
		// wait flag, the cache line nobody else is spinning on.
		xlateQcode(prev).next.Store(node)
		for node.wait.Load() != 0 {
			cpuRelax()
		}
	}

	// Head of the queue: wait for the holder to leave, then acquire.
	for {
		status, tail := l.arch.getLockTail(&l.word, myCode)
		switch {
		case status > 0:
			// Still held.
		case status < 0:
			// The protocol moved us into the pending byte and completed
			// the acquisition there; our queue entry is already gone.
			putQnode(proc)
			return
		case tail == myCode:
			// Head and tail at once: take the lock and empty the queue in
			// one step, nobody to notify. Failure means a new waiter has
			// taken the tail; next pass goes through the branch below.
			if l.arch.trylockAndClrTail(&l.word, myCode) {
				putQnode(proc)
				return
			}
		default:
			// Waiters behind us: just set the lock bit, the tail stays.
			if l.arch.trylockUnfair(&l.word) {
				l.notifyNext(node)
				putQnode(proc)
				return
			}
		}
		cpuRelax()
	}
}

// notifyNext hands the head position to the successor. The tail we observed
// may still be between its tail exchange and its link write, so the next
// pointer can lag; wait it out.
func (l *Lock) notifyNext(node *qnode) {
	next := node.next.Load()
	for next == nil {
		cpuRelax()
		next = node.next.Load()
	}
	next.wait.Store(0)
}
