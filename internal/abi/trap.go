package abi

// Trap is the syscall number placed in the trap frame at entry, per the
// kernel's calling convention. Numbering matches the public syscall
// table in internal/syscalls exactly.
type Trap int

const (
	TrapYield Trap = iota
	TrapExit
	TrapMyParentTid
	TrapMyTid
	TrapCreate
	TrapSend
	TrapReceive
	TrapReply
	TrapAwaitEvent
	TrapPerf
	TrapShutdown
)

func (t Trap) String() string {
	switch t {
	case TrapYield:
		return "Yield"
	case TrapExit:
		return "Exit"
	case TrapMyParentTid:
		return "MyParentTid"
	case TrapMyTid:
		return "MyTid"
	case TrapCreate:
		return "Create"
	case TrapSend:
		return "Send"
	case TrapReceive:
		return "Receive"
	case TrapReply:
		return "Reply"
	case TrapAwaitEvent:
		return "AwaitEvent"
	case TrapPerf:
		return "Perf"
	case TrapShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}
