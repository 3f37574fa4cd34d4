package engine

import (
	"container/heap"

	"github.com/roach88/gdplbb/internal/gdp"
)

// Compile time check to ensure nodeHeap satisfies the heap interface.
var _ heap.Interface = (*nodeHeap)(nil)

// nodeHeap implements heap.Interface over search nodes. The best bound for
// the sense sorts first; equal bounds sort by creation seq.
type nodeHeap struct {
	sense gdp.Sense
	items []*SearchNode
}

func (h *nodeHeap) Len() int { return len(h.items) }

func (h *nodeHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Bound != b.Bound {
		return h.sense.Better(a.Bound, b.Bound)
	}
	return a.Seq < b.Seq
}

func (h *nodeHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *nodeHeap) Push(x any) {
	h.items = append(h.items, x.(*SearchNode))
}

func (h *nodeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid retaining popped nodes
	h.items = old[:n-1]
	return item
}

// nodeQueue is the best-first priority queue of the search.
//
// The queue is owned by the search goroutine and is not safe for concurrent
// use; parallel child solves hand their nodes back before anything is pushed.
type nodeQueue struct {
	h nodeHeap
}

func newNodeQueue(sense gdp.Sense) *nodeQueue {
	return &nodeQueue{h: nodeHeap{sense: sense, items: make([]*SearchNode, 0, 64)}}
}

// Push adds a node.
func (q *nodeQueue) Push(n *SearchNode) {
	heap.Push(&q.h, n)
}

// Pop removes and returns the best node. Returns (nil, false) if empty.
func (q *nodeQueue) Pop() (*SearchNode, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*SearchNode), true
}

// Len returns the number of queued nodes.
func (q *nodeQueue) Len() int {
	return q.h.Len()
}
