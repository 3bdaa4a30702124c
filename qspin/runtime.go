package qspin

import (
	_ "unsafe" // for go:linkname
)

// The queue protocol needs two services from the scheduler: a processor
// identity that stays put for the duration of the protocol, and a pause hint
// for the busy-wait loops. On the Go runtime those are the pin used by
// sync.Pool — which both returns the current P's id and makes the goroutine
// non-preemptible, the moral equivalent of disabling preemption around a
// kernel spin lock — and the spin hint sync.Mutex uses between lock
// attempts.
//
// Pinning is what makes the per-processor node pool sound: a pinned
// goroutine cannot migrate, so the (proc, index) pair published through the
// lock word keeps naming the same node for as long as it is queued.

//go:linkname procPin sync.runtime_procPin
func procPin() int

//go:linkname procUnpin sync.runtime_procUnpin
func procUnpin()

// cpuRelax is the pause hint for busy-wait loops. It spins briefly in
// hardware (PAUSE on amd64) without yielding the processor — a pinned
// goroutine must not enter the scheduler.
//
//go:linkname cpuRelax sync.runtime_doSpin
func cpuRelax()
