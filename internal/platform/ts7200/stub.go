//go:build !ts7200

// Package ts7200 is the real-hardware Platform for the TS-7200 single
// board computer (ARM920T). Building it requires the ts7200 tag; without
// it, New and every method that returns an error report
// platform.ErrUnsupported, and MakeFreshFrame returns nil — always
// compiles, fails loudly.
//
// This default (untagged) build is what every non-board environment —
// CI, a contributor's laptop, this repository's own test suite — links
// against. It exists so that code which merely references
// ts7200.Platform type-checks everywhere, even though it can only run on
// the physical board.
package ts7200

import (
	"context"

	"github.com/choochoos/kernel/internal/abi"
	"github.com/choochoos/kernel/internal/event"
	"github.com/choochoos/kernel/internal/platform"
)

// Platform is the stub; New always returns platform.ErrUnsupported.
type Platform struct{}

// New reports platform.ErrUnsupported: this binary was not built with
// the ts7200 tag, so no MMIO access is available.
func New() (*Platform, error) {
	return nil, platform.ErrUnsupported
}

func (p *Platform) InitArch() error { return platform.ErrUnsupported }

func (p *Platform) MakeFreshFrame(entry platform.EntryFunc) *abi.Frame { return nil }

func (p *Platform) ActivateTask(f *abi.Frame) (abi.Trap, error) {
	return 0, platform.ErrUnsupported
}

func (p *Platform) ServiceInterrupt() (event.ID, uint32, error) {
	return 0, 0, platform.ErrUnsupported
}

func (p *Platform) Idle(ctx context.Context) error { return platform.ErrUnsupported }

func (p *Platform) Shutdown() error { return platform.ErrUnsupported }

var _ platform.Platform = (*Platform)(nil)
