// Package metrics collects per-run operation counters and latency
// samples, and renders them into the CSV summary and optional per-op
// trace files produced by each workload (spec §6).
package metrics

import (
	"math"
	"sort"
)

// Metrics accumulates counters and latencies for a single workload run
// against a single index instance. There is no locking: the simulator
// is single-threaded, so every update happens from within one event
// callback at a time (spec §5).
type Metrics struct {
	Ops           uint64
	RemoteReads   uint64
	RemoteWrites  uint64
	RemoteCAS     uint64
	SendOps       uint64
	RecvOps       uint64
	BytesRead     uint64
	BytesWrite    uint64
	HopscotchHits uint64

	latUS []float64

	trace *Trace
}

// Reset clears every counter and latency sample, ready for the next
// workload. It does not touch an already-opened Trace.
func (m *Metrics) Reset() {
	*m = Metrics{trace: m.trace}
}

// AddLatency records one operation's end-to-end latency in microseconds.
func (m *Metrics) AddLatency(us float64) {
	m.latUS = append(m.latUS, us)
}

// Percentile returns the p-th percentile (0..100) of recorded latencies,
// linearly interpolating between the two nearest ranks. Returns 0 if no
// samples have been recorded.
func (m *Metrics) Percentile(p float64) float64 {
	return CalculatePercentile(m.latUS, p)
}

// CalculatePercentile computes the p-th percentile of data via linear
// interpolation between adjacent sorted ranks.
func CalculatePercentile(data []float64, p float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)

	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))

	if lowerIdx == upperIdx {
		return sorted[lowerIdx]
	}
	lowerVal := sorted[lowerIdx]
	if upperIdx >= n {
		return sorted[n-1]
	}
	upperVal := sorted[upperIdx]
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx))
}

// SetTrace attaches a per-op trace writer. Pass nil to disable tracing.
func (m *Metrics) SetTrace(tr *Trace) { m.trace = tr }

// DumpOp appends one per-operation trace row, if tracing is enabled.
func (m *Metrics) DumpOp(opID uint64, opType string, latUS float64, reads, writes, cas, sends, recvs, bytesR, bytesW uint64) {
	if m.trace == nil {
		return
	}
	m.trace.WriteRow(opID, opType, latUS, reads, writes, cas, sends, recvs, bytesR, bytesW)
}
