// Package sched implements the ready queue: a priority-max heap of
// (priority, tid) pairs drained by the kernel's dispatch loop. It follows
// the standard container/heap.Interface shape used for priority queues,
// with one addition: a monotonic push sequence used only to break ties
// between equal priorities FIFO, so that equal-priority tasks always run
// in push order regardless of container/heap's internal sift order,
// which is not itself stable.
package sched

import "container/heap"

// entry is one ready-heap element.
type entry struct {
	priority int
	tid      int
	seq      uint64
}

// innerHeap implements heap.Interface over []entry.
type innerHeap []entry

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	// Lower seq was pushed earlier: FIFO within a priority band.
	return h[i].seq < h[j].seq
}
func (h innerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *innerHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// ReadyHeap is the ready queue: push (priority, tid), pop the
// highest-priority, earliest-pushed tid.
type ReadyHeap struct {
	h        innerHeap
	nextSeq  uint64
	capacity int
}

// New creates a ReadyHeap bounded at capacity entries. Exceeding capacity
// on Push is a fatal implementation bug — callers are expected to size
// capacity to the task table's slot count, which makes overflow
// structurally impossible in a correct kernel.
func New(capacity int) *ReadyHeap {
	r := &ReadyHeap{capacity: capacity}
	heap.Init(&r.h)
	return r
}

// Push inserts tid at priority. Returns false if the heap is already at
// capacity, which the caller must treat as fatal.
func (r *ReadyHeap) Push(priority, tid int) bool {
	if len(r.h) >= r.capacity {
		return false
	}
	heap.Push(&r.h, entry{priority: priority, tid: tid, seq: r.nextSeq})
	r.nextSeq++
	return true
}

// Pop removes and returns the highest-priority, earliest-pushed tid. The
// second return value is false if the heap is empty.
func (r *ReadyHeap) Pop() (tid int, ok bool) {
	if len(r.h) == 0 {
		return 0, false
	}
	e := heap.Pop(&r.h).(entry)
	return e.tid, true
}

// Len reports the number of ready tids.
func (r *ReadyHeap) Len() int { return len(r.h) }

// Contains reports whether tid is currently in the heap, for invariant
// checks in tests: every occupied slot in state Ready must appear in the
// ready heap exactly once.
func (r *ReadyHeap) Contains(tid int) bool {
	for _, e := range r.h {
		if e.tid == tid {
			return true
		}
	}
	return false
}

// PriorityOf returns the priority the heap has recorded for tid and
// whether tid is present at all. Used only by invariant-checking tests.
func (r *ReadyHeap) PriorityOf(tid int) (int, bool) {
	for _, e := range r.h {
		if e.tid == tid {
			return e.priority, true
		}
	}
	return 0, false
}
