//go:build ts7200

package ts7200

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/choochoos/kernel/internal/abi"
	"github.com/choochoos/kernel/internal/event"
	"github.com/choochoos/kernel/internal/platform"
)

// Physical register addresses, from the EP9302 SoC the TS-7200 is built
// around. Grounded on original_source's ts7200::constants module (timer,
// uart) and platform/ts7200/mod.rs's bring-up sequence (syscon unlock,
// VIC protection/select/enable, timer3 free-run). VIC1/VIC2 bases are the
// EP9302 datasheet values; original_source imported them from its ts7200
// crate rather than defining them inline, so they're reproduced here
// directly.
const (
	vic1Base = 0x800b0000
	vic2Base = 0x800c0000

	vicIRQStatusOffset    = 0x00
	vicIntSelectOffset    = 0x0c
	vicIntEnableOffset    = 0x10
	vicIntProtectionOffset = 0x20

	timer3Base  = 0x80810080
	timerLDROffset  = 0x0
	timerCTRLOffset = 0x8
	timerENABLEMask = 0x80
	timerCLKSELMask = 0x08

	sysconBase    = 0x80930000
	sysconSWLOCK  = sysconBase + 0x0c
	sysconDEVICECFG = sysconBase + 0x80

	pageSize = 4096
)

// mmioRegion is one mmap'd physical page, indexed directly rather than
// accessed through a syscall per register read/write.
type mmioRegion struct {
	base uint32
	mem  []byte
}

func openMMIO(physBase uint32) (*mmioRegion, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("ts7200: open /dev/mem: %w", err)
	}
	defer f.Close()

	aligned := physBase &^ (pageSize - 1)
	mem, err := unix.Mmap(int(f.Fd()), int64(aligned), pageSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("ts7200: mmap 0x%x: %w", aligned, err)
	}
	return &mmioRegion{base: aligned, mem: mem}, nil
}

func (r *mmioRegion) close() error {
	if r == nil || r.mem == nil {
		return nil
	}
	return unix.Munmap(r.mem)
}

func (r *mmioRegion) read32(physAddr uint32) uint32 {
	off := physAddr - r.base
	return uint32(r.mem[off]) | uint32(r.mem[off+1])<<8 | uint32(r.mem[off+2])<<16 | uint32(r.mem[off+3])<<24
}

func (r *mmioRegion) write32(physAddr, v uint32) {
	off := physAddr - r.base
	r.mem[off] = byte(v)
	r.mem[off+1] = byte(v >> 8)
	r.mem[off+2] = byte(v >> 16)
	r.mem[off+3] = byte(v >> 24)
}

// Platform is the real TS-7200 Platform: VIC and timer access through
// mmap'd /dev/mem, matching the board bring-up original_source performs
// in platform/ts7200/mod.rs::initialize. It requires CAP_SYS_RAWIO (or
// root) and the ts7200 build tag.
//
// ActivateTask is the one primitive this build cannot actually provide:
// running a second ARM instruction stream from inside a hosted Go
// process requires a real context switch (swap sp, branch into user
// code, trap back on SWI/IRQ) that only the assembly in
// original_source's kernel/arch/arm/*.rs performs. Until this package
// grows its own assembly trampoline, ActivateTask returns
// platform.ErrUnsupported — every other method (the parts of "running on
// the board" that don't require executing arbitrary foreign code) is
// real.
type Platform struct {
	mu   sync.Mutex
	vic1 *mmioRegion
	vic2 *mmioRegion
	tmr3 *mmioRegion
	syscon *mmioRegion
}

// New opens the physical register regions this Platform needs. It does
// not yet program anything; call InitArch for that.
func New() (*Platform, error) {
	vic1, err := openMMIO(vic1Base)
	if err != nil {
		return nil, err
	}
	vic2, err := openMMIO(vic2Base)
	if err != nil {
		vic1.close()
		return nil, err
	}
	tmr3, err := openMMIO(timer3Base)
	if err != nil {
		vic1.close()
		vic2.close()
		return nil, err
	}
	syscon, err := openMMIO(sysconSWLOCK)
	if err != nil {
		vic1.close()
		vic2.close()
		tmr3.close()
		return nil, err
	}
	return &Platform{vic1: vic1, vic2: vic2, tmr3: tmr3, syscon: syscon}, nil
}

func (p *Platform) InitArch() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.syscon.write32(sysconSWLOCK, 0xaa)
	cfg := p.syscon.read32(sysconDEVICECFG)
	p.syscon.write32(sysconDEVICECFG, cfg|1)

	p.vic1.write32(vic1Base+vicIntProtectionOffset, 1)
	p.vic2.write32(vic2Base+vicIntProtectionOffset, 1)
	p.vic1.write32(vic1Base+vicIntSelectOffset, 0)
	p.vic2.write32(vic2Base+vicIntSelectOffset, 0)

	p.tmr3.write32(timer3Base+timerCTRLOffset, 0)
	p.tmr3.write32(timer3Base+timerLDROffset, 0xffffffff)
	p.tmr3.write32(timer3Base+timerCTRLOffset, timerENABLEMask|timerCLKSELMask)
	return nil
}

func (p *Platform) MakeFreshFrame(entry platform.EntryFunc) *abi.Frame {
	return abi.NewFreshFrame(0)
}

func (p *Platform) ActivateTask(f *abi.Frame) (abi.Trap, error) {
	return 0, platform.ErrUnsupported
}

func (p *Platform) ServiceInterrupt() (event.ID, uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bits1 := p.vic1.read32(vic1Base + vicIRQStatusOffset)
	for i := 0; i < 32; i++ {
		if bits1&(1<<uint(i)) != 0 {
			return event.ID(i), 0, nil
		}
	}
	bits2 := p.vic2.read32(vic2Base + vicIRQStatusOffset)
	for i := 0; i < 32; i++ {
		if bits2&(1<<uint(i)) != 0 {
			return event.ID(32 + i), 0, nil
		}
	}
	return 0, 0, platform.ErrUnsupported
}

func (p *Platform) Idle(ctx context.Context) error {
	// A real WFI/halt-until-IRQ instruction needs the assembly
	// trampoline this build doesn't have yet; busy-poll the VIC status
	// registers instead, honoring ctx cancellation.
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.mu.Lock()
		pending := p.vic1.read32(vic1Base+vicIRQStatusOffset) != 0 ||
			p.vic2.read32(vic2Base+vicIRQStatusOffset) != 0
		p.mu.Unlock()
		if pending {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (p *Platform) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, r := range []*mmioRegion{p.vic1, p.vic2, p.tmr3, p.syscon} {
		if err := r.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ platform.Platform = (*Platform)(nil)
