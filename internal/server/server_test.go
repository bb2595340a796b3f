package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mdingest/internal/catalog"
	"mdingest/internal/model/enum"
	"mdingest/internal/obs"
	"mdingest/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStatus struct {
	units   []pipeline.UnitStatus
	healthy bool
}

func (s stubStatus) Status() []pipeline.UnitStatus { return s.units }
func (s stubStatus) Healthy() bool                 { return s.healthy }

type stubBatches struct {
	gotType  enum.EventType
	gotLimit int
	err      error
}

func (s *stubBatches) List(_ context.Context, eventType enum.EventType, limit int) ([]catalog.BatchRecord, error) {
	s.gotType, s.gotLimit = eventType, limit
	if s.err != nil {
		return nil, s.err
	}
	return []catalog.BatchRecord{{ID: "b1", EventType: "trade", Path: "/data/a.parquet", Records: 3}}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	metrics := obs.NewMetrics()
	metrics.ObserveFlush("trade", 3, 2*time.Millisecond, nil)
	units := []pipeline.UnitStatus{
		{Kind: pipeline.KindFeed, Name: "iex", State: "streaming", Running: true},
		{Kind: pipeline.KindConsolidator, Name: "trade", State: "idle", Running: true},
	}

	w := do(t, New(":0", stubStatus{units: units, healthy: true}, metrics, nil), "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string                `json:"status"`
		Units  []pipeline.UnitStatus `json:"units"`
		Flush  obs.LatencySnapshot   `json:"flush_latency"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Units, 2)
	assert.Equal(t, "iex", resp.Units[0].Name)
	assert.Equal(t, uint64(1), resp.Flush.Count)

	units[0].Running, units[0].Error = false, "feed iex: feed: vendor rejected authorization"
	w = do(t, New(":0", stubStatus{units: units}, metrics, nil), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func TestMetrics(t *testing.T) {
	metrics := obs.NewMetrics()
	metrics.IncPublished("iex", "ref_px")

	w := do(t, New(":0", stubStatus{healthy: true}, metrics, nil), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `mdingest_events_published_total{event_type="ref_px",feed="iex"} 1`), w.Body.String())

	w = do(t, New(":0", stubStatus{healthy: true}, nil, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatches(t *testing.T) {
	lister := &stubBatches{}
	s := New(":0", stubStatus{healthy: true}, nil, lister)

	w := do(t, s, "/batches?event_type=trade&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, enum.EventTypeTrade, lister.gotType)
	assert.Equal(t, 5, lister.gotLimit)
	assert.Contains(t, w.Body.String(), "/data/a.parquet")

	w = do(t, s, "/batches")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, enum.EventType(0), lister.gotType)
	assert.Equal(t, defaultBatchLimit, lister.gotLimit)

	assert.Equal(t, http.StatusBadRequest, do(t, s, "/batches?event_type=bond").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/batches?limit=-1").Code)

	lister.err = errors.New("connection refused")
	assert.Equal(t, http.StatusInternalServerError, do(t, s, "/batches").Code)

	assert.Equal(t, http.StatusNotFound, do(t, New(":0", stubStatus{healthy: true}, nil, nil), "/batches").Code)
}

func TestRun_Shutdown(t *testing.T) {
	s := New("127.0.0.1:0", stubStatus{healthy: true}, nil, nil)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
