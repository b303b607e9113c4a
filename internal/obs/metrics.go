package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the
// strategy loop. All methods are nil-safe so metrics stay optional.
type Metrics struct {
	ticks           uint64
	execReports     uint64
	cancelRejects   uint64
	crossesDetected uint64
	crossesSent     uint64
	crossesDone     uint64
	rescues         uint64
	queueDrops      uint64
	queueClosed     uint64

	tickLatency LatencyStats
	scanLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Ticks           uint64
	ExecReports     uint64
	CancelRejects   uint64
	CrossesDetected uint64
	CrossesSent     uint64
	CrossesDone     uint64
	Rescues         uint64
	QueueDrops      uint64
	QueueClosed     uint64
	TickLatency     LatencySnapshot
	ScanLatency     LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncTick records one market data update applied to the book.
func (m *Metrics) IncTick() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ticks, 1)
}

// IncExecReport records one execution report applied to the store.
func (m *Metrics) IncExecReport() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.execReports, 1)
}

// IncCancelReject records one cancel reject applied to the store.
func (m *Metrics) IncCancelReject() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cancelRejects, 1)
}

// IncCrossDetected records a detected crossed pair.
func (m *Metrics) IncCrossDetected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.crossesDetected, 1)
}

// IncCrossSent records a cross whose legs went out.
func (m *Metrics) IncCrossSent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.crossesSent, 1)
}

// IncCrossDone records a cross resolved with balanced fills.
func (m *Metrics) IncCrossDone() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.crossesDone, 1)
}

// IncRescue records a rescue order placed during an unwind.
func (m *Metrics) IncRescue() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rescues, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveTick measures one inbound event's handling latency.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickLatency.Observe(d)
}

// ObserveScan measures one cross detection scan.
func (m *Metrics) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.scanLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Ticks:           atomic.LoadUint64(&m.ticks),
		ExecReports:     atomic.LoadUint64(&m.execReports),
		CancelRejects:   atomic.LoadUint64(&m.cancelRejects),
		CrossesDetected: atomic.LoadUint64(&m.crossesDetected),
		CrossesSent:     atomic.LoadUint64(&m.crossesSent),
		CrossesDone:     atomic.LoadUint64(&m.crossesDone),
		Rescues:         atomic.LoadUint64(&m.rescues),
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		QueueClosed:     atomic.LoadUint64(&m.queueClosed),
		TickLatency:     m.tickLatency.Snapshot(),
		ScanLatency:     m.scanLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
