package devring

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the I/O completion latency histogram buckets in
// nanoseconds, from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks step()-loop statistics for a Context: device churn, I/O
// completion outcomes, and the housekeeping failures that step() otherwise
// only logs.
type Metrics struct {
	DevicesAdded   atomic.Uint64
	DevicesRemoved atomic.Uint64
	ParseFailures  atomic.Uint64 // malformed netlink frames dropped by rawdev.Parse
	EnrichFailures atomic.Uint64 // add frames that could not be enriched (treated as removes)

	IOCompletionsOK       atomic.Uint64
	IOCompletionsGraceful atomic.Uint64 // EINTR/ETIME/ENOBUFS
	IOCompletionsFatal    atomic.Uint64
	StaleCompletions      atomic.Uint64 // CQE for a handle no longer in the process map
	RearmFailures         atomic.Uint64 // multishot re-arm after IORING_CQE_F_MORE was unset

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) RecordDeviceAdded()   { m.DevicesAdded.Add(1) }
func (m *Metrics) RecordDeviceRemoved() { m.DevicesRemoved.Add(1) }
func (m *Metrics) RecordParseFailure()  { m.ParseFailures.Add(1) }
func (m *Metrics) RecordEnrichFailure() { m.EnrichFailures.Add(1) }
func (m *Metrics) RecordStale()         { m.StaleCompletions.Add(1) }
func (m *Metrics) RecordRearmFailure()  { m.RearmFailures.Add(1) }

// RecordCompletion records an I/O completion outcome and its latency.
func (m *Metrics) RecordCompletion(latencyNs uint64, fatal, graceful bool) {
	switch {
	case graceful:
		m.IOCompletionsGraceful.Add(1)
	case fatal:
		m.IOCompletionsFatal.Add(1)
	default:
		m.IOCompletionsOK.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the context as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without races.
type MetricsSnapshot struct {
	DevicesAdded   uint64
	DevicesRemoved uint64
	ParseFailures  uint64
	EnrichFailures uint64

	IOCompletionsOK       uint64
	IOCompletionsGraceful uint64
	IOCompletionsFatal    uint64
	StaleCompletions      uint64
	RearmFailures         uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalIOCompletions uint64
	ErrorRate          float64 // percentage (0-100) of completions that were fatal
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		DevicesAdded:          m.DevicesAdded.Load(),
		DevicesRemoved:        m.DevicesRemoved.Load(),
		ParseFailures:         m.ParseFailures.Load(),
		EnrichFailures:        m.EnrichFailures.Load(),
		IOCompletionsOK:       m.IOCompletionsOK.Load(),
		IOCompletionsGraceful: m.IOCompletionsGraceful.Load(),
		IOCompletionsFatal:    m.IOCompletionsFatal.Load(),
		StaleCompletions:      m.StaleCompletions.Load(),
		RearmFailures:         m.RearmFailures.Load(),
	}

	snap.TotalIOCompletions = snap.IOCompletionsOK + snap.IOCompletionsGraceful + snap.IOCompletionsFatal

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.TotalIOCompletions > 0 {
		snap.ErrorRate = float64(snap.IOCompletionsFatal) / float64(snap.TotalIOCompletions) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes all counters. Useful in tests.
func (m *Metrics) Reset() {
	m.DevicesAdded.Store(0)
	m.DevicesRemoved.Store(0)
	m.ParseFailures.Store(0)
	m.EnrichFailures.Store(0)
	m.IOCompletionsOK.Store(0)
	m.IOCompletionsGraceful.Store(0)
	m.IOCompletionsFatal.Store(0)
	m.StaleCompletions.Store(0)
	m.RearmFailures.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable hooks into the step() loop, called synchronously
// from the caller's own goroutine. Implementations must not block.
type Observer interface {
	ObserveDeviceAdded(path string)
	ObserveDeviceRemoved(path string)
	ObserveParseFailure()
	ObserveEnrichFailure(path string)
	ObserveIOCompletion(handle Handle, bytes uint64, latencyNs uint64, fatal, graceful bool)
	ObserveStaleCompletion(handle Handle)
	ObserveRearmFailure(err error)
}

// NoOpObserver is a no-op implementation of Observer, the Context default.
type NoOpObserver struct{}

func (NoOpObserver) ObserveDeviceAdded(string)                                      {}
func (NoOpObserver) ObserveDeviceRemoved(string)                                    {}
func (NoOpObserver) ObserveParseFailure()                                           {}
func (NoOpObserver) ObserveEnrichFailure(string)                                    {}
func (NoOpObserver) ObserveIOCompletion(Handle, uint64, uint64, bool, bool)          {}
func (NoOpObserver) ObserveStaleCompletion(Handle)                                  {}
func (NoOpObserver) ObserveRearmFailure(error)                                      {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveDeviceAdded(string)   { o.metrics.RecordDeviceAdded() }
func (o *MetricsObserver) ObserveDeviceRemoved(string) { o.metrics.RecordDeviceRemoved() }
func (o *MetricsObserver) ObserveParseFailure()        { o.metrics.RecordParseFailure() }
func (o *MetricsObserver) ObserveEnrichFailure(string) { o.metrics.RecordEnrichFailure() }

func (o *MetricsObserver) ObserveIOCompletion(_ Handle, bytes uint64, latencyNs uint64, fatal, graceful bool) {
	o.metrics.RecordCompletion(latencyNs, fatal, graceful)
	_ = bytes
}

func (o *MetricsObserver) ObserveStaleCompletion(Handle) { o.metrics.RecordStale() }
func (o *MetricsObserver) ObserveRearmFailure(error)     { o.metrics.RecordRearmFailure() }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
