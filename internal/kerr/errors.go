// Package kerr defines the kernel's ABI-level error codes and a structured
// error type used internally for logging context: an op/code-carrying
// *Error with Is support. The ABI itself only ever crosses the
// syscall boundary as a small negative int — Code below is that int, and
// *Error is purely a host-side diagnostic wrapper around it.
package kerr

import (
	"fmt"

	"github.com/choochoos/kernel/internal/abi"
)

// Code is a syscall-local small negative integer return value. The same
// numeric value means different things on different syscalls (e.g. -1 is
// TidDoesNotExist on Send but InvalidPriority on Create) — codes are
// compared by name, never by raw int, outside of ABI marshalling.
type Code int32

const (
	// OK is never returned as an error; it exists so zero-valued Code
	// fields are visibly "no error" rather than aliasing a real failure.
	OK Code = 0

	NoParent              Code = -1
	InvalidPriority       Code = -1
	OutOfTaskDescriptors  Code = -2
	TidDoesNotExist       Code = -1
	CouldNotSSR           Code = -2
	TidIsNotReplyBlocked  Code = -2
	InvalidEventId        Code = -1
	CorruptedVolatileData Code = -2 // reserved; never constructed, see DESIGN.md
)

// Error wraps a Code with the operation and task that produced it, for
// logging only — syscall handlers return (value, Code), never *Error,
// across the ABI boundary.
type Error struct {
	Op   string
	Tid  int
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("kernel: %s tid=%d: %s (%d)", e.Op, e.Tid, e.Msg, e.Code)
	}
	return fmt.Sprintf("kernel: %s tid=%d: code=%d", e.Op, e.Tid, e.Code)
}

// New constructs an Error for logging at the site a Code is produced.
func New(op string, tid int, code Code, msg string) *Error {
	return &Error{Op: op, Tid: tid, Code: code, Msg: msg}
}

// Is supports errors.Is against another *Error, matching on Code alone
// (Op, Tid and Msg are ignored).
func (e *Error) Is(target error) bool {
	if oc, ok := target.(*Error); ok {
		return e.Code == oc.Code
	}
	return false
}

// AsReturn encodes c the way a trap return register would carry it: the
// bit pattern of a 32-bit signed integer, zero-extended into the host's
// wider uintptr. DecodeReturn reverses it. Round-tripping through this
// pair rather than assigning Code to uintptr directly keeps a negative
// Code from becoming a huge positive uintptr on a 64-bit host.
func (c Code) AsReturn() uintptr {
	return abi.EncodeWord(int32(c))
}

// DecodeReturn reinterprets a trap return register as a signed 32-bit
// value, the inverse of Code.AsReturn.
func DecodeReturn(raw uintptr) int32 {
	return abi.DecodeWord(raw)
}
