// Package kmetrics implements the perf syscall's data source: atomic
// counters the kernel updates on every dispatch, rendezvous, and IRQ,
// snapshotted into a PerfData on demand.
package kmetrics

import (
	"sync/atomic"
	"time"
)

// PerfData is what the perf syscall fills in.
type PerfData struct {
	IdleTimePct         float64
	ContextSwitches     uint64
	SyscallsDispatched  uint64
	RendezvousCompleted uint64
	IRQsServiced        uint64
	MaxReadyDepth       uint64
}

// Metrics accumulates the raw counters behind PerfData.
type Metrics struct {
	contextSwitches     atomic.Uint64
	syscallsDispatched  atomic.Uint64
	rendezvousCompleted atomic.Uint64
	irqsServiced        atomic.Uint64
	maxReadyDepth       atomic.Uint64

	idleNs  atomic.Int64
	startNs atomic.Int64
}

// NewMetrics creates a zeroed Metrics with its clock started now.
func NewMetrics(now time.Time) *Metrics {
	m := &Metrics{}
	m.startNs.Store(now.UnixNano())
	return m
}

func (m *Metrics) RecordContextSwitch()    { m.contextSwitches.Add(1) }
func (m *Metrics) RecordSyscallDispatch()  { m.syscallsDispatched.Add(1) }
func (m *Metrics) RecordRendezvous()       { m.rendezvousCompleted.Add(1) }
func (m *Metrics) RecordIRQ()              { m.irqsServiced.Add(1) }
func (m *Metrics) RecordIdle(d time.Duration) {
	m.idleNs.Add(int64(d))
}

// RecordReadyDepth updates the high-water mark of ready-heap occupancy.
func (m *Metrics) RecordReadyDepth(depth int) {
	for {
		cur := m.maxReadyDepth.Load()
		if uint64(depth) <= cur {
			return
		}
		if m.maxReadyDepth.CompareAndSwap(cur, uint64(depth)) {
			return
		}
	}
}

// Snapshot renders the current counters as a PerfData, computing
// IdleTimePct from wall-clock time spent in Platform.Idle versus total
// elapsed time since NewMetrics.
func (m *Metrics) Snapshot(now time.Time) PerfData {
	elapsed := now.UnixNano() - m.startNs.Load()
	var idlePct float64
	if elapsed > 0 {
		idlePct = float64(m.idleNs.Load()) / float64(elapsed) * 100.0
		if idlePct > 100 {
			idlePct = 100
		}
		if idlePct < 0 {
			idlePct = 0
		}
	}
	return PerfData{
		IdleTimePct:         idlePct,
		ContextSwitches:     m.contextSwitches.Load(),
		SyscallsDispatched:  m.syscallsDispatched.Load(),
		RendezvousCompleted: m.rendezvousCompleted.Load(),
		IRQsServiced:        m.irqsServiced.Load(),
		MaxReadyDepth:       m.maxReadyDepth.Load(),
	}
}

// Observer lets internal/kernel report scheduling events without
// depending on Metrics directly.
type Observer interface {
	ObserveContextSwitch()
	ObserveSyscallDispatch()
	ObserveRendezvous()
	ObserveIRQ()
	ObserveIdle(d time.Duration)
	ObserveReadyDepth(depth int)
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) ObserveContextSwitch()        {}
func (NoOpObserver) ObserveSyscallDispatch()       {}
func (NoOpObserver) ObserveRendezvous()            {}
func (NoOpObserver) ObserveIRQ()                   {}
func (NoOpObserver) ObserveIdle(time.Duration)     {}
func (NoOpObserver) ObserveReadyDepth(int)          {}

// MetricsObserver implements Observer by recording into a *Metrics.
type MetricsObserver struct {
	m *Metrics
}

// NewMetricsObserver wraps m as an Observer.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{m: m}
}

func (o *MetricsObserver) ObserveContextSwitch()       { o.m.RecordContextSwitch() }
func (o *MetricsObserver) ObserveSyscallDispatch()     { o.m.RecordSyscallDispatch() }
func (o *MetricsObserver) ObserveRendezvous()          { o.m.RecordRendezvous() }
func (o *MetricsObserver) ObserveIRQ()                 { o.m.RecordIRQ() }
func (o *MetricsObserver) ObserveIdle(d time.Duration) { o.m.RecordIdle(d) }
func (o *MetricsObserver) ObserveReadyDepth(depth int)  { o.m.RecordReadyDepth(depth) }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
