// Package syscalls defines the task-facing API: the eleven public calls,
// plus the marshalling that turns them into platform.Client.Trap calls
// and back. internal/kernel holds the other half — the handlers that run
// when a trap for one of these numbers arrives.
package syscalls

import "github.com/choochoos/kernel/internal/abi"

// Number re-exports abi.Trap under the name the public syscall table
// uses; the two are the same eleven values.
type Number = abi.Trap

const (
	Yield       = abi.TrapYield
	Exit        = abi.TrapExit
	MyParentTid = abi.TrapMyParentTid
	MyTid       = abi.TrapMyTid
	Create      = abi.TrapCreate
	Send        = abi.TrapSend
	Receive     = abi.TrapReceive
	Reply       = abi.TrapReply
	AwaitEvent  = abi.TrapAwaitEvent
	Perf        = abi.TrapPerf
	Shutdown    = abi.TrapShutdown
)
