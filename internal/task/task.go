// Package task owns the task descriptor table: the fixed array of task
// slots, their state machine, and the per-receiver send queue linkage.
// Mutation is restricted to internal/ipc, internal/sched, internal/event,
// and internal/kernel, which all operate by tid (index), never by
// holding two live *Descriptor pointers across a single operation — a
// completion handler re-derives state by index rather than caching
// pointers across mutations.
package task

import "github.com/choochoos/kernel/internal/abi"

// Tid identifies a task slot. It is reused once a slot is freed.
type Tid int

// NoTid is the sentinel "absent" tid, distinct from every valid slot index.
const NoTid Tid = -1

// NameServerTid is the pinned tid the boot sequence must assign to the
// name server task.
const NameServerTid Tid = 1

// State is the task's position in its lifecycle state machine.
type State int

const (
	Ready State = iota
	SendWait
	RecvWait
	ReplyWait
	EventWait
	// Whether a slot holds a task at all is tracked by the descriptor's
	// occupied field, not by any State value.
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case SendWait:
		return "SendWait"
	case RecvWait:
		return "RecvWait"
	case ReplyWait:
		return "ReplyWait"
	case EventWait:
		return "EventWait"
	default:
		return "Unknown"
	}
}

// Descriptor is one task's kernel-visible state.
type Descriptor struct {
	occupied bool

	Priority  int
	ParentTid Tid
	Frame     *abi.Frame
	State     State

	// SendQueueHead/Tail implement the per-receiver singly-linked send
	// queue; Next is meaningful only while the owning task is SendWait on
	// this receiver.
	SendQueueHead Tid
	SendQueueTail Tid
	Next          Tid

	// RecvWait fields: where the eventual sender should deposit data.
	// RecvSenderTidOut is a raw machine-word address in the caller's own
	// memory (a usize-sized return is used even for pointer-bearing
	// syscalls), not a typed *Tid — internal/syscalls reconstitutes it
	// from the trap frame's argument word via unsafe, reinterpreting a
	// raw pointer against a known layout.
	RecvMsgDst       []byte
	RecvSenderTidOut *uintptr

	// SendWait / ReplyWait fields: the sender's own outgoing message and
	// where its reply should land.
	SendMsgSrc []byte
	ReplyDst   []byte
}

// Table is the fixed N-slot task descriptor array.
type Table struct {
	slots []Descriptor
}

// NewTable allocates a table with the given number of slots.
func NewTable(n int) *Table {
	t := &Table{slots: make([]Descriptor, n)}
	for i := range t.slots {
		t.slots[i] = emptyDescriptor()
	}
	return t
}

func emptyDescriptor() Descriptor {
	return Descriptor{
		occupied:         false,
		ParentTid:        NoTid,
		SendQueueHead:    NoTid,
		SendQueueTail:    NoTid,
		Next:             NoTid,
		RecvSenderTidOut: nil,
	}
}

// Len returns the number of slots in the table.
func (t *Table) Len() int { return len(t.slots) }

// Occupied reports whether tid names a live task.
func (t *Table) Occupied(tid Tid) bool {
	if tid < 0 || int(tid) >= len(t.slots) {
		return false
	}
	return t.slots[tid].occupied
}

// Get returns a pointer to tid's descriptor. Callers must check Occupied
// first (or treat a zero-value Descriptor as "absent") — Get never
// allocates or validates on its own, matching the "look up fresh, don't
// hold across mutations" rule this package is built around.
func (t *Table) Get(tid Tid) *Descriptor {
	return &t.slots[tid]
}

// Alloc finds the lowest-indexed empty slot, marks it occupied with the
// given priority/parent/frame, and returns its tid. Returns NoTid if the
// table is full.
func (t *Table) Alloc(priority int, parent Tid, frame *abi.Frame) Tid {
	for i := range t.slots {
		if !t.slots[i].occupied {
			t.slots[i] = Descriptor{
				occupied:      true,
				Priority:      priority,
				ParentTid:     parent,
				Frame:         frame,
				State:         Ready,
				SendQueueHead: NoTid,
				SendQueueTail: NoTid,
				Next:          NoTid,
			}
			return Tid(i)
		}
	}
	return NoTid
}

// Free clears tid's slot. The caller is responsible for having already
// drained its send queue (internal/kernel's exit handler does this via
// internal/ipc.DrainSendQueue).
func (t *Table) Free(tid Tid) {
	t.slots[tid] = emptyDescriptor()
}

// AllTids returns the tids of every currently occupied slot, in index
// order. Used by shutdown and by tests asserting table-wide invariants.
func (t *Table) AllTids() []Tid {
	var out []Tid
	for i := range t.slots {
		if t.slots[i].occupied {
			out = append(out, Tid(i))
		}
	}
	return out
}
