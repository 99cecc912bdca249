// Package kerntest provides a test-only Platform built on top of
// platform/hostsim, wrapping it with error-injection and call-counting
// knobs: kernel and syscalls tests drive a real scheduler loop without
// any OS thread or hardware dependency, and can inject IRQs on a
// schedule the test controls.
package kerntest

import (
	"context"
	"sync"

	"github.com/choochoos/kernel/internal/event"
	"github.com/choochoos/kernel/internal/platform"
	"github.com/choochoos/kernel/internal/platform/hostsim"
)

// Platform wraps a hostsim.Platform, adding deterministic bookkeeping
// tests need: a count of ServiceInterrupt/Idle calls and the ability to
// fail InitArch/Shutdown on command.
type Platform struct {
	*hostsim.Platform

	mu           sync.Mutex
	initErr      error
	shutdownErr  error
	idleCalls    int
	serviceCalls int
}

// New builds a kerntest Platform with the given IRQ queue capacity.
func New(irqQueueCapacity int) *Platform {
	return &Platform{Platform: hostsim.New(irqQueueCapacity)}
}

// WithInitErr makes a future InitArch call return err instead of
// delegating to hostsim.
func (p *Platform) WithInitErr(err error) *Platform {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initErr = err
	return p
}

// WithShutdownErr makes a future Shutdown call return err instead of
// delegating to hostsim.
func (p *Platform) WithShutdownErr(err error) *Platform {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdownErr = err
	return p
}

func (p *Platform) InitArch() error {
	p.mu.Lock()
	err := p.initErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.Platform.InitArch()
}

func (p *Platform) Shutdown() error {
	p.mu.Lock()
	err := p.shutdownErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.Platform.Shutdown()
}

func (p *Platform) Idle(ctx context.Context) error {
	p.mu.Lock()
	p.idleCalls++
	p.mu.Unlock()
	return p.Platform.Idle(ctx)
}

func (p *Platform) ServiceInterrupt() (event.ID, uint32, error) {
	p.mu.Lock()
	p.serviceCalls++
	p.mu.Unlock()
	return p.Platform.ServiceInterrupt()
}

// IdleCalls reports how many times Idle has been invoked so far.
func (p *Platform) IdleCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idleCalls
}

// ServiceCalls reports how many times ServiceInterrupt has been invoked
// so far.
func (p *Platform) ServiceCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serviceCalls
}

var (
	_ platform.Platform = (*Platform)(nil)
	_ platform.Injector = (*Platform)(nil)
)
