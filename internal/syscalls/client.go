package syscalls

import (
	"unsafe"

	"github.com/choochoos/kernel/internal/abi"
	"github.com/choochoos/kernel/internal/kerr"
	"github.com/choochoos/kernel/internal/kmetrics"
	"github.com/choochoos/kernel/internal/platform"
)

// Client is the typed, task-facing wrapper every task entry function
// (including the name server) calls through — the only way code running
// as a task ever reaches the kernel. It marshals each of the eleven
// syscalls into a platform.Client.Trap call and unmarshals the result,
// including the small-negative-int ABI error convention from
// internal/kerr.
type Client struct {
	trap platform.Client
	reg  *EntryRegistry
}

// NewClient wraps the raw trap primitive c, using reg to resolve Create's
// entry-function tokens.
func NewClient(c platform.Client, reg *EntryRegistry) *Client {
	return &Client{trap: c, reg: reg}
}

// Yield re-enters the ready queue immediately with unchanged priority.
func (c *Client) Yield() {
	c.trap.Trap(Yield, nil)
}

// Exit never returns; the caller's goroutine (under hostsim) or task
// (under ts7200) ends here.
func (c *Client) Exit() {
	c.trap.Trap(Exit, nil)
}

// MyTid returns the currently running tid.
func (c *Client) MyTid() int {
	r := c.trap.Trap(MyTid, nil)
	return int(r[0])
}

// MyParentTid returns the caller's parent tid, or kerr.NoParent if the
// caller was kernel-spawned.
func (c *Client) MyParentTid() (int, error) {
	r := c.trap.Trap(MyParentTid, nil)
	v := kerr.DecodeReturn(r[0])
	if v < 0 {
		return 0, kerr.New("MyParentTid", 0, kerr.Code(v), "")
	}
	return int(v), nil
}

// Create spawns a new task at priority running entry, returning its tid.
func (c *Client) Create(priority int, entry TaskFunc) (int, error) {
	token := c.reg.Register(entry)
	r := c.trap.Trap(Create, []uintptr{abi.EncodeWord(int32(priority)), token})
	v := kerr.DecodeReturn(r[0])
	if v < 0 {
		c.reg.Take(token) // no-op: the kernel's create handler already took it
		return 0, kerr.New("Create", 0, kerr.Code(v), "")
	}
	return int(v), nil
}

// Send delivers msg to tid and blocks for a reply, returning the number
// of bytes actually written into reply (truncation is the caller's to
// detect by comparing against len(reply)).
func (c *Client) Send(tid int, msg, reply []byte) (int, error) {
	args := []uintptr{uintptr(tid), PtrOf(msg), uintptr(len(msg)), PtrOf(reply), uintptr(len(reply))}
	r := c.trap.Trap(Send, args)
	v := kerr.DecodeReturn(r[0])
	if v < 0 {
		return 0, kerr.New("Send", tid, kerr.Code(v), "")
	}
	return int(v), nil
}

// Receive blocks until a sender arrives, copying its message into dst
// and returning the sender's tid and the number of bytes copied.
func (c *Client) Receive(dst []byte) (senderTid int, n int) {
	var senderWord uintptr
	args := []uintptr{WordPtrOf(&senderWord), PtrOf(dst), uintptr(len(dst))}
	r := c.trap.Trap(Receive, args)
	return int(senderWord), int(r[0])
}

// Reply completes the rendezvous started by tid's earlier Send, copying
// reply into its reply buffer.
func (c *Client) Reply(tid int, reply []byte) (int, error) {
	args := []uintptr{uintptr(tid), PtrOf(reply), uintptr(len(reply))}
	r := c.trap.Trap(Reply, args)
	v := kerr.DecodeReturn(r[0])
	if v < 0 {
		return 0, kerr.New("Reply", tid, kerr.Code(v), "")
	}
	return int(v), nil
}

// AwaitEvent blocks until eventID's source fires (or returns immediately
// if a datum was already stashed), returning the volatile data word.
func (c *Client) AwaitEvent(eventID int) (uint32, error) {
	r := c.trap.Trap(AwaitEvent, []uintptr{uintptr(eventID)})
	v := kerr.DecodeReturn(r[0])
	if v < 0 {
		return 0, kerr.New("AwaitEvent", 0, kerr.Code(v), "")
	}
	return uint32(v), nil
}

// Perf fills and returns a PerfData snapshot.
func (c *Client) Perf() kmetrics.PerfData {
	var pd kmetrics.PerfData
	c.trap.Trap(Perf, []uintptr{uintptr(unsafe.Pointer(&pd))})
	return pd
}

// Shutdown never returns; it tears down the whole kernel.
func (c *Client) Shutdown() {
	c.trap.Trap(Shutdown, nil)
}
