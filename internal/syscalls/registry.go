package syscalls

import "sync"

// TaskFunc is a task entry point as user code writes it: a function
// taking the typed Client. internal/kernel adapts a TaskFunc into a
// platform.EntryFunc (which only knows the raw platform.Client) when it
// actually creates the task's execution context.
type TaskFunc func(*Client)

// EntryRegistry bridges the one place a "just a pointer" ABI can't
// survive being hosted in Go: a task's entry function is a real code
// address on the board, but this process can't synthesize executable
// code from an address, so Create instead passes a registry token across
// the trap boundary and internal/kernel looks the real TaskFunc back up
// by that token. Every other pointer argument (message buffers,
// out-params) is a genuine address in shared process memory and needs no
// such indirection — see marshal.go.
type EntryRegistry struct {
	mu    sync.Mutex
	next  uintptr
	funcs map[uintptr]TaskFunc
}

// NewEntryRegistry creates an empty registry.
func NewEntryRegistry() *EntryRegistry {
	return &EntryRegistry{funcs: make(map[uintptr]TaskFunc)}
}

// Register stashes fn and returns a token suitable for passing as a trap
// argument word.
func (r *EntryRegistry) Register(fn TaskFunc) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	token := r.next
	r.funcs[token] = fn
	return token
}

// Take removes and returns the function registered under token. Called
// once by the kernel's create handler, win or lose.
func (r *EntryRegistry) Take(token uintptr) (TaskFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.funcs[token]
	delete(r.funcs, token)
	return fn, ok
}
