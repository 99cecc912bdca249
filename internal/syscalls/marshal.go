package syscalls

import "unsafe"

// PtrOf, BytesFrom, WordPtrOf, and WordPtrFrom cross the trap boundary
// the way real hardware would: a pointer is just the address of memory
// the two sides already share (everything runs in one host process, the
// same as everything running in one physical address space on the
// board). Reinterpreting a raw address against a known layout avoids
// copying through an intermediate buffer. Exported because both Client
// (the task side) and internal/kernel (the trap-handler side) need the
// same conversions.

// PtrOf returns b's address, or 0 for an empty slice.
func PtrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// BytesFrom reconstitutes a []byte of length length at address ptr.
func BytesFrom(ptr, length uintptr) []byte {
	if ptr == 0 || length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), int(length))
}

// WordPtrOf returns p's address, or 0 for a nil pointer.
func WordPtrOf(p *uintptr) uintptr {
	if p == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(p))
}

// WordPtrFrom reconstitutes a *uintptr out-parameter at address addr.
func WordPtrFrom(addr uintptr) *uintptr {
	if addr == 0 {
		return nil
	}
	return (*uintptr)(unsafe.Pointer(addr))
}
