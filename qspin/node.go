package qspin

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Queue nodes live in a flat per-processor pool and are addressed through
// the lock word as a compact queue code rather than a pointer:
//
//	Bits 0-1: node index within the processor's set (4 nodes)
//	Bits 2+ : processor number + 1
//
// Code 0 cannot name a node and means "no waiter". Four nodes per processor
// cover nested acquisition: a pinned goroutine that takes another lock while
// spinning on or holding this one uses the next slot up, stack-style.
const (
	maxQnodes = 4

	qnodeIdxBits        = 2
	qnodeIdxMask uint32 = 1<<qnodeIdxBits - 1
)

// qnode is one entry in the wait queue. While queued it is owned by the
// processor that allocated it; the only cross-processor traffic is the
// successor writing our next link and the predecessor clearing our wait
// flag, both through atomics.
type qnode struct {
	wait atomic.Uint32
	next atomic.Pointer[qnode]
}

// qnodeSet is one processor's node pool: a small stack of nodes with a bump
// index. Only the currently pinned owner of the processor advances the
// index; the atomic accesses carry it between successive owners. Padding
// keeps neighbouring processors' sets off the same cache line.
type qnodeSet struct {
	idx   atomic.Int32
	nodes [maxQnodes]qnode
	_     cpu.CacheLinePad
}

var qnset = make([]qnodeSet, poolSize())

func poolSize() int {
	n := runtime.GOMAXPROCS(0)
	if c := runtime.NumCPU(); c > n {
		n = c
	}
	return n
}

// getQnode allocates the next free node of the calling processor's set.
// Returns nil if the set is exhausted, or if proc is beyond the pool because
// GOMAXPROCS was raised after package init; both take the caller to the
// unfair-spin fallback.
func getQnode(proc int) (*qnode, uint32) {
	if proc >= len(qnset) {
		return nil, 0
	}
	set := &qnset[proc]
	i := set.idx.Load()
	if i >= maxQnodes {
		return nil, 0
	}
	set.idx.Store(i + 1)
	return &set.nodes[i], uint32(i)
}

// putQnode returns the most recently allocated node. Nested acquisitions
// release in reverse order of allocation, so a bump index is enough.
func putQnode(proc int) {
	set := &qnset[proc]
	set.idx.Store(set.idx.Load() - 1)
}

// encodeQcode builds the queue code naming a (processor, node index) pair.
func encodeQcode(proc int, idx uint32) uint32 {
	return uint32(proc+1)<<qnodeIdxBits | idx
}

// xlateQcode resolves a queue code back to its node.
func xlateQcode(q uint32) *qnode {
	proc := q>>qnodeIdxBits - 1
	return &qnset[proc].nodes[q&qnodeIdxMask]
}
