package qspin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQnodeCodeRoundTrip(t *testing.T) {
	for proc := 0; proc < len(qnset); proc++ {
		for idx := uint32(0); idx < maxQnodes; idx++ {
			code := encodeQcode(proc, idx)
			assert.NotZero(t, code, "0 is reserved for the empty queue")
			assert.Same(t, &qnset[proc].nodes[idx], xlateQcode(code))
		}
	}
}

// TestQnodePoolNesting allocates the full nesting depth, checks the set is
// then exhausted, and unwinds. Capture-then-assert: no testing calls while
// pinned.
func TestQnodePoolNesting(t *testing.T) {
	proc := procPin()

	var nodes [maxQnodes]*qnode
	var idxs [maxQnodes]uint32
	for i := 0; i < maxQnodes; i++ {
		nodes[i], idxs[i] = getQnode(proc)
	}
	extra, _ := getQnode(proc)
	depth := qnset[proc].idx.Load()
	for i := 0; i < maxQnodes; i++ {
		putQnode(proc)
	}
	after := qnset[proc].idx.Load()
	procUnpin()

	for i := 0; i < maxQnodes; i++ {
		assert.NotNil(t, nodes[i])
		assert.Equal(t, uint32(i), idxs[i], "allocation should be stack ordered")
	}
	assert.Nil(t, extra, "allocation beyond the nesting depth should fail")
	assert.Equal(t, int32(maxQnodes), depth)
	assert.Zero(t, after, "the pool should be empty again after unwinding")
}

func TestGetQnodeOutOfRangeProc(t *testing.T) {
	n, _ := getQnode(len(qnset))
	assert.Nil(t, n, "a proc beyond the pool takes the exhaustion fallback")
}
