// Package event implements the event table: a small map from event-id to
// either a single blocked tid or a stashed volatile datum delivered by an
// IRQ that arrived before anyone awaited it.
package event

// ID names an interrupt source a task may await. internal/kernel passes
// every ID a task awaits straight to Table.Await: it does not check
// whether the ID corresponds to an actual source, and it never returns
// kerr.InvalidEventId.
type ID int

// entryKind distinguishes the two payloads an event-table slot can hold.
type entryKind int

const (
	kindEmpty entryKind = iota
	kindBlockedTid
	kindVolatileData
)

type entry struct {
	kind entryKind
	tid  int
	data uint32
}

// Table is the event-id -> {BlockedTid, VolatileData} map.
type Table struct {
	entries map[ID]entry
}

// New creates an empty event table.
func New() *Table {
	return &Table{entries: make(map[ID]entry)}
}

// Len reports how many event-ids currently have a live entry (either a
// waiter or a stashed datum).
func (t *Table) Len() int { return len(t.entries) }

// AwaitResult is the outcome of a task calling AwaitEvent.
type AwaitResult int

const (
	// AwaitDelivered means a stashed datum existed and was consumed; the
	// caller should return it immediately without blocking.
	AwaitDelivered AwaitResult = iota
	// AwaitBlocked means the caller was registered as the event's waiter
	// and must transition to EventWait; its return value arrives later
	// via Deliver.
	AwaitBlocked
	// AwaitAlreadyBlocked means another tid is already waiting on this
	// event — a fatal condition, since only one waiter per event is
	// supported.
	AwaitAlreadyBlocked
)

// Await implements the caller side of awaiting an event: if a datum is stashed for id,
// consume and return it; if another tid already waits, report the fatal
// condition; otherwise register tid as the waiter.
func (t *Table) Await(id ID, tid int) (AwaitResult, uint32) {
	e, present := t.entries[id]
	if !present {
		t.entries[id] = entry{kind: kindBlockedTid, tid: tid}
		return AwaitBlocked, 0
	}
	switch e.kind {
	case kindVolatileData:
		delete(t.entries, id)
		return AwaitDelivered, e.data
	case kindBlockedTid:
		return AwaitAlreadyBlocked, 0
	default:
		t.entries[id] = entry{kind: kindBlockedTid, tid: tid}
		return AwaitBlocked, 0
	}
}

// DeliverResult is the outcome of Deliver, telling internal/kernel whether
// a task needs waking.
type DeliverResult int

const (
	// DeliverStashed means no one was waiting; the datum was stored for
	// the next Await on this id.
	DeliverStashed DeliverResult = iota
	// DeliverWoke means a waiting tid was found and should be woken with
	// the given data as its return value.
	DeliverWoke
	// DeliverDropped means a waiter tid was recorded but the caller has
	// since told us (via WaiterAlive returning false) that the task no
	// longer exists; the entry is cleared and nothing is woken.
	DeliverDropped
)

// Deliver implements the IRQ-handler side of event delivery. waiterAlive is called
// only when a BlockedTid entry exists, to let the caller check whether
// that task's slot is still occupied and still EventWait (it may have
// exited while parked). This indirection keeps internal/event from
// depending on internal/task.
func (t *Table) Deliver(id ID, data uint32, waiterAlive func(tid int) bool) (DeliverResult, int) {
	e, present := t.entries[id]
	if !present || e.kind == kindVolatileData {
		t.entries[id] = entry{kind: kindVolatileData, data: data}
		return DeliverStashed, 0
	}
	// kindBlockedTid
	if waiterAlive(e.tid) {
		delete(t.entries, id)
		return DeliverWoke, e.tid
	}
	delete(t.entries, id)
	return DeliverDropped, 0
}

// WaiterTid returns the tid currently waiting on id, if any. Used by
// invariant-checking tests: exactly one event-table entry should map
// some id to BlockedTid(tid).
func (t *Table) WaiterTid(id ID) (int, bool) {
	e, present := t.entries[id]
	if !present || e.kind != kindBlockedTid {
		return 0, false
	}
	return e.tid, true
}

// Clear empties the table, used by shutdown.
func (t *Table) Clear() {
	t.entries = make(map[ID]entry)
}

// ForEachWaiter iterates live BlockedTid entries, for invariant checks
// that need to confirm each occupied EventWait slot has exactly one
// corresponding entry and vice versa.
func (t *Table) ForEachWaiter(fn func(id ID, tid int)) {
	for id, e := range t.entries {
		if e.kind == kindBlockedTid {
			fn(id, e.tid)
		}
	}
}
