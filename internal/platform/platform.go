// Package platform draws one line: everything above this interface is
// the kernel proper, portable and unit-testable on any host; everything
// below it is what it takes to actually run on the target board. The
// line sits at the context-switch primitive.
package platform

import (
	"context"
	"errors"

	"github.com/choochoos/kernel/internal/abi"
	"github.com/choochoos/kernel/internal/event"
)

// ErrUnsupported is returned by any Platform method the current build
// cannot actually perform — the ts7200 build without real MMIO access
// available, or a method no host can sensibly emulate. A same-shaped
// stub type exists so the package always compiles, but every method
// fails loudly instead of pretending to work.
var ErrUnsupported = errors.New("platform: not supported by this build")

// Client is the task-side half of the context-switch primitive: the
// operation a running task performs to trap into the kernel and block
// until the kernel resumes it with a result. internal/syscalls.Client
// wraps this with the friendly, typed syscall methods tasks actually
// call; Client itself only knows about raw trap numbers and argument
// words, matching the abstract calling convention tasks trap through.
type Client interface {
	// Trap hands num and args to the kernel and blocks until the kernel
	// writes back a result, which Trap returns. For TrapExit and
	// TrapShutdown, which never return control to the caller, Trap may
	// simply never come back (the task goroutine parks forever inside it
	// on hostsim; real hardware just never resumes that stack).
	Trap(num abi.Trap, args []uintptr) []uintptr
}

// EntryFunc is a task's entry point, given the Client it must use to
// reach the kernel. internal/kernel wraps a user-facing
// func(*syscalls.Client) into one of these before calling MakeFreshFrame,
// keeping this package's dependency graph limited to abi and event.
type EntryFunc func(Client)

// Platform is the architecture-specific substrate the kernel proper is
// built on: creating a fresh execution context for a new task, running
// one until it traps back, and servicing the interrupt controller. Names
// follow the init_arch / activate_task / make_fresh_frame trio;
// ServiceInterrupt and Idle correspond to the IRQ handler's two
// hardware-facing questions ("is anything pending?" / "what fired, and
// with what data?").
type Platform interface {
	// InitArch performs one-time architecture bring-up: enabling the
	// interrupt controller, programming the timer, whatever the concrete
	// board needs before any task can run.
	InitArch() error

	// MakeFreshFrame allocates the saved-context for a brand new task
	// whose entry point is entry. The returned Frame is what the kernel
	// stores as the task's saved_sp; ActivateTask is later called with
	// this exact pointer to run it.
	MakeFreshFrame(entry EntryFunc) *abi.Frame

	// ActivateTask resumes the task owning f from wherever it last
	// trapped (or, the first time, from its entry point) and blocks
	// until it traps back into the kernel, mutating f in place with its
	// new register state and returning the trap it raised. A task that
	// falls off the end of its entry function without calling Exit
	// raises TrapExit, per the LR = TrapExitAddress convention in
	// abi.NewFreshFrame.
	ActivateTask(f *abi.Frame) (abi.Trap, error)

	// ServiceInterrupt is called by the kernel's IRQ path once Idle (or
	// an interrupt arriving mid-dispatch) indicates a pending interrupt.
	// It acknowledges the interrupt at the controller and reports which
	// event id fired and with what 32-bit datum.
	ServiceInterrupt() (event.ID, uint32, error)

	// Idle blocks the calling goroutine until at least one interrupt is
	// pending, or ctx is done. The kernel calls this only when the ready
	// heap is empty, mirroring the real kernel's "nothing to run, wait
	// for hardware" idle path.
	Idle(ctx context.Context) error

	// Shutdown releases any resources InitArch acquired (mmap'd
	// registers, background goroutines). Safe to call once, after the
	// kernel's run loop has returned.
	Shutdown() error
}

// Injector is implemented by platforms that can simulate hardware
// interrupts arriving from software — hostsim, and internal/kerntest's
// fake used by syscall/kernel tests. It has no equivalent on real
// hardware, so it is never part of the Platform interface itself; code
// that needs it type-asserts a concrete Platform value.
type Injector interface {
	RaiseInterrupt(id event.ID, data uint32)
}
