// Package ipc implements the send-receive-reply rendezvous: the kernel's
// only inter-task communication primitive. Every function here is called
// exclusively from internal/kernel's dispatch handlers, which already
// hold the kernel's single thread of control; nothing in this package
// takes a lock.
package ipc

import (
	"github.com/choochoos/kernel/internal/abi"
	"github.com/choochoos/kernel/internal/kerr"
	"github.com/choochoos/kernel/internal/sched"
	"github.com/choochoos/kernel/internal/task"
)

// copyOverlapSafe copies min(len(dst), len(src)) bytes from src to dst
// through a scratch buffer, so the result is correct even when dst and
// src alias the same underlying array (a task passing one buffer as both
// its message and its reply destination). Go's builtin copy already
// tolerates this for []byte, but the scratch step is kept explicit so the
// property holds regardless of copy's implementation.
func copyOverlapSafe(dst, src []byte) int {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}
	scratch := make([]byte, n)
	copy(scratch, src[:n])
	copy(dst[:n], scratch)
	return n
}

// Send implements the send algorithm. immediate is true only when the
// call resolves (or fails) without blocking the sender — i.e. the
// TidDoesNotExist case; a caller observing immediate must write err's
// code as the sender's own return value. Otherwise the sender has been
// transitioned to SendWait or ReplyWait and its eventual return value
// arrives later via Receive or Reply.
func Send(tasks *task.Table, ready *sched.ReadyHeap, sender, receiver task.Tid, msg, replyBuf []byte) (immediate bool, err *kerr.Error) {
	if !tasks.Occupied(receiver) {
		return true, kerr.New("Send", int(sender), kerr.TidDoesNotExist, "receiver slot empty")
	}

	rd := tasks.Get(receiver)
	if rd.State == task.RecvWait {
		n := copyOverlapSafe(rd.RecvMsgDst, msg)
		if rd.RecvSenderTidOut != nil {
			*rd.RecvSenderTidOut = uintptr(sender)
		}
		abi.SetReturn(rd.Frame, uintptr(n))
		rd.State = task.Ready
		rd.RecvMsgDst = nil
		rd.RecvSenderTidOut = nil
		ready.Push(rd.Priority, int(receiver))

		sd := tasks.Get(sender)
		sd.State = task.ReplyWait
		sd.ReplyDst = replyBuf
		return false, nil
	}

	// Receiver not yet waiting: append sender to its send-queue tail.
	sd := tasks.Get(sender)
	sd.State = task.SendWait
	sd.SendMsgSrc = msg
	sd.ReplyDst = replyBuf
	sd.Next = task.NoTid

	if rd.SendQueueTail == task.NoTid {
		rd.SendQueueHead = sender
	} else {
		tasks.Get(rd.SendQueueTail).Next = sender
	}
	rd.SendQueueTail = sender
	return false, nil
}

// Receive implements the receive algorithm. immediate is true when a
// queued sender was consumed right away, in which case value is the
// copied message length; otherwise the caller has been transitioned to
// RecvWait and its return value arrives later via Send.
func Receive(tasks *task.Table, receiver task.Tid, senderTidOut *uintptr, msgDst []byte) (immediate bool, value int) {
	rd := tasks.Get(receiver)
	if rd.SendQueueHead == task.NoTid {
		rd.State = task.RecvWait
		rd.RecvMsgDst = msgDst
		rd.RecvSenderTidOut = senderTidOut
		return false, 0
	}

	senderTid := rd.SendQueueHead
	sd := tasks.Get(senderTid)
	n := copyOverlapSafe(msgDst, sd.SendMsgSrc)
	if senderTidOut != nil {
		*senderTidOut = uintptr(senderTid)
	}
	sd.State = task.ReplyWait
	sd.SendMsgSrc = nil

	rd.SendQueueHead = sd.Next
	if rd.SendQueueHead == task.NoTid {
		rd.SendQueueTail = task.NoTid
	}
	sd.Next = task.NoTid
	return true, n
}

// Reply implements the reply algorithm: target is the tid originally
// blocked in ReplyWait (the earlier sender), not the caller performing
// the reply.
func Reply(tasks *task.Table, ready *sched.ReadyHeap, target task.Tid, replyMsg []byte) (value int, err *kerr.Error) {
	if !tasks.Occupied(target) {
		return 0, kerr.New("Reply", int(target), kerr.TidDoesNotExist, "target slot empty")
	}
	td := tasks.Get(target)
	if td.State != task.ReplyWait {
		return 0, kerr.New("Reply", int(target), kerr.TidIsNotReplyBlocked, "target not reply-blocked")
	}
	n := copyOverlapSafe(td.ReplyDst, replyMsg)
	abi.SetReturn(td.Frame, uintptr(n))
	td.State = task.Ready
	td.ReplyDst = nil
	ready.Push(td.Priority, int(target))
	return n, nil
}

// DrainSendQueue implements the send-queue half of exit: every sender
// queued behind tid is woken with CouldNotSSR, in FIFO order. Called by
// the kernel's exit handler before freeing tid's slot.
func DrainSendQueue(tasks *task.Table, ready *sched.ReadyHeap, tid task.Tid) {
	d := tasks.Get(tid)
	cur := d.SendQueueHead
	for cur != task.NoTid {
		sd := tasks.Get(cur)
		next := sd.Next
		abi.SetReturn(sd.Frame, kerr.CouldNotSSR.AsReturn())
		sd.State = task.Ready
		sd.Next = task.NoTid
		sd.SendMsgSrc = nil
		ready.Push(sd.Priority, int(cur))
		cur = next
	}
	d.SendQueueHead = task.NoTid
	d.SendQueueTail = task.NoTid
}
