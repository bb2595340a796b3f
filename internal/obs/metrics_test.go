package obs

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.IncPublished("iex", "ref_px")
	m.IncSkipped("iex", SkipControl)
	m.ObserveFlush("ref_px", 3, time.Millisecond, nil)
	m.RegisterQueue("ref_px", func() int { return 0 }, func() uint64 { return 0 })
	assert.Nil(t, m.Registry())
	assert.Equal(t, LatencySnapshot{}, m.FlushLatency())
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.IncPublished("crypto", "trade")
	m.IncPublished("crypto", "trade")
	m.IncPublished("crypto", "quote")
	m.IncSkipped("fx", SkipControl)
	m.IncReconnect("fx")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("crypto", "trade")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("crypto", "quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesSkipped.WithLabelValues("fx", SkipControl)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects.WithLabelValues("fx")))
}

func TestMetrics_ObserveFlush(t *testing.T) {
	m := NewMetrics()
	m.ObserveFlush("quote", 30, 2*time.Millisecond, nil)
	m.ObserveFlush("quote", 5, 4*time.Millisecond, errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.flushes.WithLabelValues("quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flushFailures.WithLabelValues("quote")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.recordsWritten.WithLabelValues("quote")))

	lat := m.FlushLatency()
	assert.EqualValues(t, 2, lat.Count)
	assert.Equal(t, 2*time.Millisecond, lat.Min)
	assert.Equal(t, 4*time.Millisecond, lat.Max)
	assert.Equal(t, 3*time.Millisecond, lat.Avg)
}

func TestMetrics_RegisterQueue(t *testing.T) {
	m := NewMetrics()
	depth := 7
	m.RegisterQueue("trade", func() int { return depth }, func() uint64 { return 2 })
	m.RegisterQueue("quote", func() int { return 0 }, func() uint64 { return 0 })

	expected := `
# HELP mdingest_queue_depth Events waiting in the bus queue.
# TYPE mdingest_queue_depth gauge
mdingest_queue_depth{event_type="quote"} 0
mdingest_queue_depth{event_type="trade"} 7
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "mdingest_queue_depth"))
}
