package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choochoos/kernel/internal/abi"
	"github.com/choochoos/kernel/internal/kerr"
	"github.com/choochoos/kernel/internal/sched"
	"github.com/choochoos/kernel/internal/task"
)

func newFixture(t *testing.T, n int) (*task.Table, *sched.ReadyHeap) {
	t.Helper()
	return task.NewTable(n), sched.New(n)
}

func TestSendToNonexistentReceiverIsImmediateError(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	sender := tasks.Alloc(0, task.NoTid, abi.NewFreshFrame(0))

	immediate, err := Send(tasks, ready, sender, task.Tid(3), nil, nil)
	require.True(t, immediate)
	require.NotNil(t, err)
	assert.Equal(t, kerr.TidDoesNotExist, err.Code)
}

func TestSendBeforeReceiveQueuesSender(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	sender := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	receiver := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))

	immediate, err := Send(tasks, ready, sender, receiver, []byte("hi"), make([]byte, 8))
	require.False(t, immediate)
	require.Nil(t, err)

	sd := tasks.Get(sender)
	assert.Equal(t, task.SendWait, sd.State)
	rd := tasks.Get(receiver)
	assert.Equal(t, sender, rd.SendQueueHead)
	assert.Equal(t, sender, rd.SendQueueTail)
}

func TestReceiveConsumesQueuedSenderImmediately(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	sender := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	receiver := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	Send(tasks, ready, sender, receiver, []byte("hello"), make([]byte, 8))

	dst := make([]byte, 8)
	var senderOut uintptr
	immediate, n := Receive(tasks, receiver, &senderOut, dst)
	require.True(t, immediate)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(dst[:n]))
	assert.Equal(t, uintptr(sender), senderOut)
	assert.Equal(t, task.ReplyWait, tasks.Get(sender).State)
}

func TestReceiveBeforeSendBlocksReceiver(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	receiver := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))

	dst := make([]byte, 8)
	var senderOut uintptr
	immediate, _ := Receive(tasks, receiver, &senderOut, dst)
	assert.False(t, immediate)
	assert.Equal(t, task.RecvWait, tasks.Get(receiver).State)

	sender := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	immediate, err := Send(tasks, ready, sender, receiver, []byte("yo"), make([]byte, 8))
	require.False(t, immediate)
	require.Nil(t, err)
	assert.Equal(t, "yo", string(dst[:2]))
	assert.Equal(t, uintptr(sender), senderOut)
	assert.True(t, ready.Contains(int(receiver)))
}

func TestReplyDeliversBytesAndWakesSender(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	sender := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	receiver := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	replyBuf := make([]byte, 8)
	Send(tasks, ready, sender, receiver, []byte("hi"), replyBuf)
	var senderOut uintptr
	Receive(tasks, receiver, &senderOut, make([]byte, 8))

	n, err := Reply(tasks, ready, sender, []byte("ok"))
	require.Nil(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ok", string(replyBuf[:2]))
	assert.Equal(t, task.Ready, tasks.Get(sender).State)
	assert.True(t, ready.Contains(int(sender)))
}

func TestReplyToTidNotReplyBlockedFails(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	tid := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))

	_, err := Reply(tasks, ready, tid, []byte("x"))
	require.NotNil(t, err)
	assert.Equal(t, kerr.TidIsNotReplyBlocked, err.Code)
}

func TestReplyToMissingTidFails(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	_, err := Reply(tasks, ready, task.Tid(2), []byte("x"))
	require.NotNil(t, err)
	assert.Equal(t, kerr.TidDoesNotExist, err.Code)
}

func TestCopyTruncatesToSmallerBuffer(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	sender := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	receiver := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	Send(tasks, ready, sender, receiver, []byte("this is a long message"), make([]byte, 64))

	dst := make([]byte, 4)
	var senderOut uintptr
	_, n := Receive(tasks, receiver, &senderOut, dst)
	assert.Equal(t, 4, n)
	assert.Equal(t, "this", string(dst))
}

func TestDrainSendQueueWakesEveryoneFIFOWithCouldNotSSR(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	receiver := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	s1 := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	s2 := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	Send(tasks, ready, s1, receiver, []byte("a"), nil)
	Send(tasks, ready, s2, receiver, []byte("b"), nil)

	DrainSendQueue(tasks, ready, receiver)

	for _, tid := range []task.Tid{s1, s2} {
		d := tasks.Get(tid)
		assert.Equal(t, task.Ready, d.State)
		assert.Equal(t, kerr.CouldNotSSR.AsReturn(), d.Frame.R[0])
		assert.True(t, ready.Contains(int(tid)))
	}
	rd := tasks.Get(receiver)
	assert.Equal(t, task.NoTid, rd.SendQueueHead)
	assert.Equal(t, task.NoTid, rd.SendQueueTail)
}

func TestOverlappingSendAndReplyBuffersDontCorrupt(t *testing.T) {
	tasks, ready := newFixture(t, 4)
	sender := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))
	receiver := tasks.Alloc(1, task.NoTid, abi.NewFreshFrame(0))

	shared := []byte("abcd")
	Send(tasks, ready, sender, receiver, shared, shared)
	var senderOut uintptr
	dst := make([]byte, 8)
	Receive(tasks, receiver, &senderOut, dst)
	assert.Equal(t, "abcd", string(dst[:4]))

	n, err := Reply(tasks, ready, sender, shared)
	require.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(shared))
}
