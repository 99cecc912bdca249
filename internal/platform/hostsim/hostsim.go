// Package hostsim is the Platform used by every test, demo binary, and
// CI run: a single-core ARM9 board modeled with goroutines and channels
// instead of real registers and an MMU. Each task is a goroutine parked
// on a channel standing in for "suspended on its own stack"; ActivateTask
// unparks it and blocks until it traps back. hostsim is the platform.Platform
// implementation that runs everywhere; ts7200 is the one gated behind a
// build tag for the real board.
package hostsim

import (
	"context"
	"sync"

	"github.com/choochoos/kernel/internal/abi"
	"github.com/choochoos/kernel/internal/event"
	"github.com/choochoos/kernel/internal/platform"
)

// handle is the Platform-private bookkeeping stashed in abi.Frame.Handle
// for every task spawned by this Platform.
type handle struct {
	frame   *abi.Frame
	trapCh  chan trapMsg  // task -> ActivateTask: "I trapped, here's why"
	resumeCh chan struct{} // ActivateTask -> task: "continue"
}

type trapMsg struct {
	num  abi.Trap
	exit bool // goroutine returned from its entry func; no resume will follow
}

// client is the platform.Client a task's entry function actually calls
// into. It is never exposed outside this package; internal/syscalls.Client
// wraps the platform.Client interface it satisfies.
type client struct {
	h *handle
}

func (c *client) Trap(num abi.Trap, args []uintptr) []uintptr {
	f := c.h.frame
	for i := 0; i < len(args) && i < 4; i++ {
		f.R[i] = args[i]
	}
	if len(args) > 4 {
		f.Overflow = append([]uintptr(nil), args[4:]...)
	} else {
		f.Overflow = nil
	}
	c.h.trapCh <- trapMsg{num: num}
	if num == abi.TrapExit || num == abi.TrapShutdown {
		// Never resumed: park forever rather than returning garbage to a
		// task body that (by contract) must not execute past Exit/Shutdown.
		select {}
	}
	<-c.h.resumeCh
	return []uintptr{f.R[0]}
}

// Platform is the hostsim Platform. The zero value is not usable; use New.
type Platform struct {
	mu      sync.Mutex
	irqCh   chan irqMsg
	closed  bool
	closeCh chan struct{}
}

type irqMsg struct {
	id   event.ID
	data uint32
}

// New creates a hostsim Platform with a pending-interrupt queue of the
// given capacity (how many simulated IRQs can be "in flight" before
// RaiseInterrupt blocks).
func New(irqQueueCapacity int) *Platform {
	if irqQueueCapacity < 1 {
		irqQueueCapacity = 1
	}
	return &Platform{
		irqCh:   make(chan irqMsg, irqQueueCapacity),
		closeCh: make(chan struct{}),
	}
}

func (p *Platform) InitArch() error { return nil }

func (p *Platform) MakeFreshFrame(entry platform.EntryFunc) *abi.Frame {
	f := abi.NewFreshFrame(0)
	h := &handle{
		frame:    f,
		trapCh:   make(chan trapMsg),
		resumeCh: make(chan struct{}),
	}
	f.Handle = h
	go func() {
		<-h.resumeCh // wait for the first ActivateTask
		entry(&client{h: h})
		// Entry returned without an explicit Exit trap: this is the
		// implicit-exit case from LR = TrapExitAddress, modeled here as
		// the goroutine simply falling through.
		h.trapCh <- trapMsg{num: abi.TrapExit, exit: true}
	}()
	return f
}

func (p *Platform) ActivateTask(f *abi.Frame) (abi.Trap, error) {
	h, ok := f.Handle.(*handle)
	if !ok || h == nil {
		return 0, platform.ErrUnsupported
	}
	h.resumeCh <- struct{}{}
	msg := <-h.trapCh
	return msg.num, nil
}

func (p *Platform) ServiceInterrupt() (event.ID, uint32, error) {
	select {
	case m := <-p.irqCh:
		return m.id, m.data, nil
	default:
		return 0, 0, platform.ErrUnsupported
	}
}

func (p *Platform) Idle(ctx context.Context) error {
	select {
	case m := <-p.irqCh:
		// Put it back so ServiceInterrupt (called next by the kernel)
		// still observes it; Idle's only job is to block until one is
		// pending, not to consume it.
		select {
		case p.irqCh <- m:
		default:
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closeCh:
		return platform.ErrUnsupported
	}
}

// RaiseInterrupt simulates an IRQ controller asserting id with data, for
// demo binaries and tests. Implements platform.Injector.
func (p *Platform) RaiseInterrupt(id event.ID, data uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.irqCh <- irqMsg{id: id, data: data}
}

func (p *Platform) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.closeCh)
	return nil
}

var _ platform.Platform = (*Platform)(nil)
var _ platform.Injector = (*Platform)(nil)
