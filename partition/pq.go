package partition

import (
	"container/heap"
)

// gainQueue is a max priority queue of vertices keyed by gain. The position of
// every queued vertex is tracked so gains can change in place. Ties pop the
// vertex inserted first.
type gainQueue struct {
	items []int // vertex ids in heap order
	gain  []int
	seq   []int
	pos   []int // -1 when not queued
	next  int
}

func newGainQueue(nvtxs int) *gainQueue {
	q := &gainQueue{
		gain: make([]int, nvtxs),
		seq:  make([]int, nvtxs),
		pos:  make([]int, nvtxs),
	}
	for i := range q.pos {
		q.pos[i] = -1
	}
	return q
}

func (q *gainQueue) Len() int { return len(q.items) }

func (q *gainQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if q.gain[a] != q.gain[b] {
		return q.gain[a] > q.gain[b]
	}
	return q.seq[a] < q.seq[b]
}

func (q *gainQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.pos[q.items[i]] = i
	q.pos[q.items[j]] = j
}

// Push and Pop are used by the heap package only.
func (q *gainQueue) Push(x any) {
	v := x.(int)
	q.pos[v] = len(q.items)
	q.items = append(q.items, v)
}

func (q *gainQueue) Pop() any {
	n := len(q.items)
	v := q.items[n-1]
	q.items = q.items[:n-1]
	q.pos[v] = -1
	return v
}

func (q *gainQueue) contains(v int) bool { return q.pos[v] >= 0 }

func (q *gainQueue) insert(v, gain int) {
	q.gain[v] = gain
	q.seq[v] = q.next
	q.next++
	heap.Push(q, v)
}

// update changes the gain of a queued vertex.
func (q *gainQueue) update(v, gain int) {
	q.gain[v] = gain
	heap.Fix(q, q.pos[v])
}

func (q *gainQueue) remove(v int) {
	heap.Remove(q, q.pos[v])
}

// popMax removes the vertex with the highest gain, or returns -1.
func (q *gainQueue) popMax() int {
	if len(q.items) == 0 {
		return -1
	}
	return heap.Pop(q).(int)
}

func (q *gainQueue) peek() (v, gain int) {
	if len(q.items) == 0 {
		return -1, 0
	}
	return q.items[0], q.gain[q.items[0]]
}

func (q *gainQueue) reset() {
	for _, v := range q.items {
		q.pos[v] = -1
	}
	q.items = q.items[:0]
}
