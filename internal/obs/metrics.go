package obs

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mdingest"

// Skip reasons for frames that never become events.
const (
	SkipControl     = "control"
	SkipMalformed   = "malformed"
	SkipVendorError = "vendor_error"
)

// Metrics collects pipeline counters on a dedicated prometheus registry.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	eventsPublished *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	framesSkipped   *prometheus.CounterVec
	reconnects      *prometheus.CounterVec
	eventsConsumed  *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	flushes         *prometheus.CounterVec
	flushFailures   *prometheus.CounterVec
	recordsWritten  *prometheus.CounterVec
	flushDuration   *prometheus.HistogramVec
	flushLatency    LatencyStats
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
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
}

// NewMetrics allocates and registers the pipeline collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Normalized events published onto the bus.",
		}, []string{"feed", "event_type"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Events the bus refused.",
		}, []string{"feed"}),
		framesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Vendor frames skipped without producing an event.",
		}, []string{"feed", "reason"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_reconnects_total",
			Help:      "Feed connection losses followed by a reconnect backoff.",
		}, []string{"feed"}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Events taken off the bus by a consolidator.",
		}, []string{"event_type"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_replaced_total",
			Help:      "Buffered events replaced by a later event with the same dedup key.",
		}, []string{"event_type"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Batches written to storage.",
		}, []string{"event_type"}),
		flushFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_failures_total",
			Help:      "Batches lost because the write failed.",
		}, []string{"event_type"}),
		recordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Records written to storage.",
		}, []string{"event_type"}),
		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time spent writing one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"event_type"}),
	}

	m.registry.MustRegister(
		m.eventsPublished,
		m.publishFailures,
		m.framesSkipped,
		m.reconnects,
		m.eventsConsumed,
		m.duplicates,
		m.flushes,
		m.flushFailures,
		m.recordsWritten,
		m.flushDuration,
	)
	return m
}

// Registry exposes the collectors for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RegisterQueue exports depth and drop count of one bus queue.
func (m *Metrics) RegisterQueue(eventType string, depth func() int, drops func() uint64) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"event_type": eventType}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_depth",
			Help:        "Events waiting in the bus queue.",
			ConstLabels: labels,
		}, func() float64 { return float64(depth()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "queue_drops_total",
			Help:        "Events discarded by the queue overflow policy.",
			ConstLabels: labels,
		}, func() float64 { return float64(drops()) }),
	)
}

func (m *Metrics) IncPublished(feed, eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(feed, eventType).Inc()
}

func (m *Metrics) IncPublishFailure(feed string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(feed).Inc()
}

func (m *Metrics) IncSkipped(feed, reason string) {
	if m == nil {
		return
	}
	m.framesSkipped.WithLabelValues(feed, reason).Inc()
}

func (m *Metrics) IncReconnect(feed string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(feed).Inc()
}

func (m *Metrics) IncConsumed(eventType string) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncDuplicate(eventType string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(eventType).Inc()
}

// ObserveFlush records the outcome of one batch write.
func (m *Metrics) ObserveFlush(eventType string, records int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.flushDuration.WithLabelValues(eventType).Observe(d.Seconds())
	m.flushLatency.Observe(d)
	if err != nil {
		m.flushFailures.WithLabelValues(eventType).Inc()
		return
	}
	m.flushes.WithLabelValues(eventType).Inc()
	m.recordsWritten.WithLabelValues(eventType).Add(float64(records))
}

// FlushLatency returns flush latency across all event types.
func (m *Metrics) FlushLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{}
	}
	return m.flushLatency.Snapshot()
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
