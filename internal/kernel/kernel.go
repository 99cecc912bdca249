// Package kernel is the dispatch loop and trap handlers that tie every
// other internal package together: internal/task's descriptor table,
// internal/sched's ready heap, internal/event's event table,
// internal/ipc's rendezvous algorithms, and a internal/platform.Platform
// substrate. Boot and run() implement the boot sequence and scheduler
// loop; dispatch and the per-syscall handlers implement the eleven
// syscalls.
package kernel

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"github.com/choochoos/kernel/internal/abi"
	"github.com/choochoos/kernel/internal/event"
	"github.com/choochoos/kernel/internal/ipc"
	"github.com/choochoos/kernel/internal/kconfig"
	"github.com/choochoos/kernel/internal/kerr"
	"github.com/choochoos/kernel/internal/logging"
	"github.com/choochoos/kernel/internal/kmetrics"
	"github.com/choochoos/kernel/internal/platform"
	"github.com/choochoos/kernel/internal/sched"
	"github.com/choochoos/kernel/internal/syscalls"
	"github.com/choochoos/kernel/internal/task"
)

// Kernel owns every piece of shared state: the task table, ready heap,
// event table, and current tid, all touched only from run()'s single
// thread of control.
type Kernel struct {
	cfg    kconfig.Config
	tasks  *task.Table
	ready  *sched.ReadyHeap
	events *event.Table
	plat    platform.Platform
	log     *logging.Logger
	obs     kmetrics.Observer
	metrics *kmetrics.Metrics
	reg     *syscalls.EntryRegistry

	current task.Tid
	done    bool
}

// New builds a Kernel over the given platform. log may be nil, falling
// back to logging.Default(). metrics may be nil, in which case perf always
// reports a zeroed PerfData and no Observer events are recorded.
func New(cfg kconfig.Config, plat platform.Platform, log *logging.Logger, metrics *kmetrics.Metrics) *Kernel {
	if log == nil {
		log = logging.Default()
	}
	var obs kmetrics.Observer = kmetrics.NoOpObserver{}
	if metrics != nil {
		obs = kmetrics.NewMetricsObserver(metrics)
	}
	return &Kernel{
		cfg:     cfg,
		tasks:   task.NewTable(cfg.MaxTasks),
		ready:   sched.New(cfg.ReadyHeapCapacity),
		events:  event.New(),
		plat:    plat,
		log:     log,
		obs:     obs,
		metrics: metrics,
		reg:     syscalls.NewEntryRegistry(),
		current: task.NoTid,
	}
}

func (k *Kernel) adapt(fn syscalls.TaskFunc) platform.EntryFunc {
	return func(pc platform.Client) {
		fn(syscalls.NewClient(pc, k.reg))
	}
}

// Boot runs the boot sequence: arch init, spawn FirstUserTask then
// NameServerTask (which must land on task.NameServerTid), then the
// dispatch loop until the ready heap and event table both drain or
// Shutdown is called.
func (k *Kernel) Boot(ctx context.Context, firstUserTask, nameServerTask syscalls.TaskFunc) error {
	if err := k.plat.InitArch(); err != nil {
		return fmt.Errorf("kernel: init arch: %w", err)
	}

	if _, err := k.spawn(0, task.NoTid, firstUserTask); err != nil {
		return fmt.Errorf("kernel: spawning first user task: %w", err)
	}
	nsTid, err := k.spawn(0, task.NoTid, nameServerTask)
	if err != nil {
		return fmt.Errorf("kernel: spawning name server: %w", err)
	}
	if nsTid != task.NameServerTid {
		k.fatal("Boot", fmt.Sprintf("name server landed on tid %d, want %d", nsTid, task.NameServerTid))
	}

	k.log.Info("kernel booted", "first_user_task_tid", 0, "name_server_tid", int(nsTid))
	k.run(ctx)
	return nil
}

func (k *Kernel) spawn(priority int, parent task.Tid, fn syscalls.TaskFunc) (task.Tid, error) {
	if fn == nil {
		k.fatal("Create", "nil entry function")
	}
	if priority < 0 {
		return task.NoTid, kerr.New("Create", int(parent), kerr.InvalidPriority, "negative priority")
	}
	frame := k.plat.MakeFreshFrame(k.adapt(fn))
	tid := k.tasks.Alloc(priority, parent, frame)
	if tid == task.NoTid {
		return task.NoTid, kerr.New("Create", int(parent), kerr.OutOfTaskDescriptors, "task table full")
	}
	if !k.ready.Push(priority, int(tid)) {
		k.fatal("Create", "ready heap overflow")
	}
	k.obs.ObserveReadyDepth(k.ready.Len())
	return tid, nil
}

// run is the scheduler loop.
func (k *Kernel) run(ctx context.Context) {
	for !k.done {
		tid, ok := k.ready.Pop()
		if !ok {
			if k.events.Len() == 0 {
				k.log.Info("ready heap and event table both empty, halting")
				return
			}
			idleStart := time.Now()
			if err := k.plat.Idle(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				k.fatal("Idle", err.Error())
			}
			k.obs.ObserveIdle(time.Since(idleStart))
			k.handleIRQ()
			continue
		}

		k.current = task.Tid(tid)
		d := k.tasks.Get(k.current)
		if d.Frame == nil {
			k.fatal("run", "nil saved_sp for a ready task")
		}

		trapNum, err := k.plat.ActivateTask(d.Frame)
		k.obs.ObserveContextSwitch()
		if err != nil {
			k.fatal("ActivateTask", err.Error())
		}
		k.obs.ObserveSyscallDispatch()

		k.dispatch(k.current, trapNum)

		if k.tasks.Occupied(k.current) {
			d = k.tasks.Get(k.current)
			if d.State == task.Ready {
				if !k.ready.Push(d.Priority, int(k.current)) {
					k.fatal("run", "ready heap overflow")
				}
			}
		}
		k.obs.ObserveReadyDepth(k.ready.Len())
		k.current = task.NoTid
	}
}

func numArgs(num abi.Trap) int {
	switch num {
	case abi.TrapCreate:
		return 2
	case abi.TrapSend:
		return 5
	case abi.TrapReceive:
		return 3
	case abi.TrapReply:
		return 3
	case abi.TrapAwaitEvent:
		return 1
	case abi.TrapPerf:
		return 1
	default:
		return 0
	}
}

func (k *Kernel) dispatch(tid task.Tid, num abi.Trap) {
	d := k.tasks.Get(tid)
	args := abi.ExtractArgs(d.Frame, numArgs(num))

	switch num {
	case abi.TrapYield:
		// Ready is unchanged; run() re-pushes after dispatch returns.
	case abi.TrapExit:
		k.handleExit(tid)
	case abi.TrapMyTid:
		abi.SetReturn(d.Frame, uintptr(tid))
	case abi.TrapMyParentTid:
		k.handleMyParentTid(tid)
	case abi.TrapCreate:
		k.handleCreate(tid, args)
	case abi.TrapSend:
		k.handleSend(tid, args)
	case abi.TrapReceive:
		k.handleReceive(tid, args)
	case abi.TrapReply:
		k.handleReply(tid, args)
	case abi.TrapAwaitEvent:
		k.handleAwaitEvent(tid, args)
	case abi.TrapPerf:
		k.handlePerf(tid, args)
	case abi.TrapShutdown:
		k.handleShutdown()
	default:
		k.fatal("dispatch", fmt.Sprintf("invalid syscall number %d from tid %d", num, tid))
	}
}

func (k *Kernel) handleExit(tid task.Tid) {
	ipc.DrainSendQueue(k.tasks, k.ready, tid)
	k.tasks.Free(tid)
}

func (k *Kernel) handleMyParentTid(tid task.Tid) {
	d := k.tasks.Get(tid)
	if d.ParentTid == task.NoTid {
		abi.SetReturn(d.Frame, kerr.NoParent.AsReturn())
		return
	}
	abi.SetReturn(d.Frame, uintptr(d.ParentTid))
}

func (k *Kernel) handleCreate(tid task.Tid, args []uintptr) {
	priority := int(abi.DecodeWord(args[0]))
	token := args[1]
	d := k.tasks.Get(tid)

	fn, ok := k.reg.Take(token)
	if !ok {
		k.fatal("Create", "unknown entry-function token")
	}
	newTid, err := k.spawn(priority, tid, fn)
	if err != nil {
		if kerrVal, ok := err.(*kerr.Error); ok {
			abi.SetReturn(d.Frame, kerrVal.Code.AsReturn())
			return
		}
		k.fatal("Create", err.Error())
	}
	abi.SetReturn(d.Frame, uintptr(newTid))
}

func (k *Kernel) handleSend(tid task.Tid, args []uintptr) {
	d := k.tasks.Get(tid)
	receiver := task.Tid(abi.DecodeWord(args[0]))
	msg := syscalls.BytesFrom(args[1], args[2])
	reply := syscalls.BytesFrom(args[3], args[4])

	immediate, err := ipc.Send(k.tasks, k.ready, tid, receiver, msg, reply)
	if immediate {
		abi.SetReturn(d.Frame, err.Code.AsReturn())
		return
	}
	if d.State == task.ReplyWait {
		// The receiver was already in RecvWait: the message was delivered.
		k.obs.ObserveRendezvous()
	}
	// Sender's return value is supplied later by Receive/Reply/exit.
}

func (k *Kernel) handleReceive(tid task.Tid, args []uintptr) {
	senderTidOut := syscalls.WordPtrFrom(args[0])
	msgDst := syscalls.BytesFrom(args[1], args[2])

	immediate, n := ipc.Receive(k.tasks, tid, senderTidOut, msgDst)
	if immediate {
		abi.SetReturn(k.tasks.Get(tid).Frame, uintptr(n))
		k.obs.ObserveRendezvous()
	}
	// Otherwise the caller transitioned to RecvWait; return value arrives
	// with the eventual Send.
}

func (k *Kernel) handleReply(tid task.Tid, args []uintptr) {
	d := k.tasks.Get(tid)
	target := task.Tid(abi.DecodeWord(args[0]))
	reply := syscalls.BytesFrom(args[1], args[2])

	n, err := ipc.Reply(k.tasks, k.ready, target, reply)
	if err != nil {
		abi.SetReturn(d.Frame, err.Code.AsReturn())
		return
	}
	abi.SetReturn(d.Frame, uintptr(n))
	k.obs.ObserveRendezvous()
}

func (k *Kernel) handleAwaitEvent(tid task.Tid, args []uintptr) {
	d := k.tasks.Get(tid)
	id := event.ID(abi.DecodeWord(args[0]))

	result, data := k.events.Await(id, int(tid))
	switch result {
	case event.AwaitDelivered:
		abi.SetReturn(d.Frame, uintptr(data))
	case event.AwaitBlocked:
		d.State = task.EventWait
	case event.AwaitAlreadyBlocked:
		k.fatal("AwaitEvent", fmt.Sprintf("event %d already has a waiter", id))
	}
}

func (k *Kernel) handlePerf(tid task.Tid, args []uintptr) {
	d := k.tasks.Get(tid)
	out := (*kmetrics.PerfData)(unsafe.Pointer(args[0]))
	if k.metrics != nil {
		*out = k.metrics.Snapshot(time.Now())
	} else {
		*out = kmetrics.PerfData{}
	}
	abi.SetReturn(d.Frame, 0)
}

func (k *Kernel) handleShutdown() {
	k.events.Clear()
	for {
		if _, ok := k.ready.Pop(); !ok {
			break
		}
	}
	for _, tid := range k.tasks.AllTids() {
		k.tasks.Free(tid)
	}
	k.done = true
	k.log.Info("shutdown requested")
}

// handleIRQ services one pending interrupt: it acknowledges it at the
// controller and wakes any task awaiting the event id that fired.
func (k *Kernel) handleIRQ() {
	id, data, err := k.plat.ServiceInterrupt()
	if err != nil {
		k.fatal("ServiceInterrupt", err.Error())
	}
	k.obs.ObserveIRQ()

	result, tid := k.events.Deliver(id, data, func(t int) bool {
		tt := task.Tid(t)
		return k.tasks.Occupied(tt) && k.tasks.Get(tt).State == task.EventWait
	})
	if result != event.DeliverWoke {
		return
	}
	wd := k.tasks.Get(task.Tid(tid))
	abi.SetReturn(wd.Frame, uintptr(data))
	wd.State = task.Ready
	if !k.ready.Push(wd.Priority, tid) {
		k.fatal("handleIRQ", "ready heap overflow")
	}
	k.obs.ObserveReadyDepth(k.ready.Len())
}

// fatal renders a panic banner through logging.Logger.Fatal and
// terminates. Reserved for kernel-internal invariant violations with no
// recoverable path: a corrupt ready heap, an unknown trap number, a
// name server that didn't land on task.NameServerTid.
func (k *Kernel) fatal(op, detail string) {
	k.log.Fatal("fatal kernel invariant violation", "op", op, "detail", detail, "current_tid", int(k.current))
}
