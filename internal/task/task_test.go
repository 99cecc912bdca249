package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choochoos/kernel/internal/abi"
)

func TestAllocAssignsLowestFreeSlot(t *testing.T) {
	tbl := NewTable(4)
	a := tbl.Alloc(1, NoTid, abi.NewFreshFrame(0))
	b := tbl.Alloc(2, a, abi.NewFreshFrame(0))
	require.Equal(t, Tid(0), a)
	require.Equal(t, Tid(1), b)

	tbl.Free(a)
	c := tbl.Alloc(3, NoTid, abi.NewFreshFrame(0))
	assert.Equal(t, Tid(0), c, "freed slot 0 must be reused before slot 2")
}

func TestAllocFullTableReturnsNoTid(t *testing.T) {
	tbl := NewTable(2)
	tbl.Alloc(0, NoTid, abi.NewFreshFrame(0))
	tbl.Alloc(0, NoTid, abi.NewFreshFrame(0))
	tid := tbl.Alloc(0, NoTid, abi.NewFreshFrame(0))
	assert.Equal(t, NoTid, tid)
}

func TestFreeResetsDescriptorToEmpty(t *testing.T) {
	tbl := NewTable(2)
	a := tbl.Alloc(5, NoTid, abi.NewFreshFrame(0))
	tbl.Free(a)

	assert.False(t, tbl.Occupied(a))
	d := tbl.Get(a)
	assert.Equal(t, NoTid, d.ParentTid)
	assert.Equal(t, NoTid, d.SendQueueHead)
	assert.Equal(t, NoTid, d.SendQueueTail)
	assert.Equal(t, NoTid, d.Next)
	assert.Nil(t, d.RecvSenderTidOut)
}

func TestAllTidsReturnsOnlyOccupiedSlotsInOrder(t *testing.T) {
	tbl := NewTable(3)
	a := tbl.Alloc(0, NoTid, abi.NewFreshFrame(0))
	_ = a
	b := tbl.Alloc(0, NoTid, abi.NewFreshFrame(0))
	c := tbl.Alloc(0, NoTid, abi.NewFreshFrame(0))
	tbl.Free(b)

	got := tbl.AllTids()
	assert.Equal(t, []Tid{a, c}, got)
}

func TestOccupiedRejectsOutOfRangeTids(t *testing.T) {
	tbl := NewTable(2)
	assert.False(t, tbl.Occupied(Tid(-1)))
	assert.False(t, tbl.Occupied(Tid(99)))
}
