package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mdingest/internal/bus"
	"mdingest/internal/consolidator"
	"mdingest/internal/ingest"
	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/internal/obs"
	"mdingest/internal/ops"
	"mdingest/internal/recorder"
	"mdingest/pkg/exception"
	"mdingest/pkg/websocket"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	iexSPY      = `{"service":"iex","messageType":"A","data":["2024-03-01T09:30:00.000001-05:00","SPY",510.1]}`
	iexAAPL     = `{"service":"iex","messageType":"A","data":["2024-03-01T09:30:00.000002-05:00","aapl",180.5]}`
	iexSPYAgain = `{"service":"iex","messageType":"A","data":["2024-03-01T09:30:00.000001-05:00","spy",510.2]}`
	cryptoTrade = `{"service":"crypto_data","messageType":"A","data":["T","btcusd","2024-03-01T14:30:00.5+00:00","kraken",0.25,61000.5]}`
	cryptoQuote = `{"service":"crypto_data","messageType":"A","data":["Q","btcusd","2024-03-01T14:30:01+00:00",1.5,60999,61000,2,61001]}`
	heartbeat   = `{"messageType":"H","response":{"code":200,"message":"HeartBeat"}}`
	rejected    = `{"messageType":"E","response":{"code":401,"message":"Invalid API key"}}`
)

func testConfig(dir string) ops.Config {
	return ops.Config{
		Vendor: ops.VendorConfig{Name: "tiingo", APIKey: "key"},
		Feeds: ops.FeedsConfig{
			IEX:    ops.FeedConfig{Enabled: true, URL: "wss://iex.test", ThresholdLevel: 6},
			Crypto: ops.FeedConfig{Enabled: true, URL: "wss://crypto.test", ThresholdLevel: 5},
		},
		Reconnect: ops.ReconnectConfig{Backoff: time.Millisecond, Factor: 1},
		Tickers: ops.TickerSet{
			Stock:  []string{"aapl"},
			ETF:    []string{"spy"},
			Crypto: []string{"btcusd"},
		},
		Bus: ops.BusConfig{Overflow: "drop_oldest"},
		Consolidator: ops.ConsolidatorConfig{
			Dir:            dir,
			FilePrefix:     "consol_feeds",
			Compression:    "snappy",
			FlushThreshold: 30,
		},
		Timezone: "America/New_York",
	}
}

func waitConsumed(t *testing.T, conns ...*scriptConn) {
	t.Helper()
	for _, c := range conns {
		select {
		case <-c.consumed:
		case <-time.After(5 * time.Second):
			t.Fatal("scripted frames were not consumed")
		}
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	iex := newScriptConn(heartbeat, iexSPY, iexAAPL, iexSPYAgain)
	crypto := newScriptConn(cryptoTrade, cryptoQuote)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	cfg := testConfig(dir)
	cfg.Catalog = ops.CatalogConfig{Enabled: true, DSN: "unused"}
	p, err := Build(cfg, Option{
		Dialers: map[enum.Feed]websocket.Dialer{
			enum.FeedIEX:    &onceDialer{conn: iex},
			enum.FeedCrypto: &onceDialer{conn: crypto},
		},
		CatalogDB: db,
	})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- p.Supervisor.Run(ctx) }()

	waitConsumed(t, iex, crypto)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not stop")
	}

	refPaths, err := recorder.ListBatches(dir, "consol_feeds", enum.EventTypeRefPx)
	require.NoError(t, err)
	require.Len(t, refPaths, 1)
	refs, err := recorder.ReadBatch(refPaths[0], enum.EventTypeRefPx)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "spy", refs[0].Symbol)
	assert.Equal(t, enum.AssetTypeETF, refs[0].AssetType)
	assert.Equal(t, 510.2, refs[0].Price.InexactFloat64())
	assert.Equal(t, "aapl", refs[1].Symbol)
	assert.Equal(t, enum.AssetTypeStock, refs[1].AssetType)
	assert.Equal(t, "tiingo_iex", refs[1].Source)

	tradePaths, err := recorder.ListBatches(dir, "consol_feeds", enum.EventTypeTrade)
	require.NoError(t, err)
	require.Len(t, tradePaths, 1)
	trades, err := recorder.ReadBatch(tradePaths[0], enum.EventTypeTrade)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "kraken", trades[0].Venue)
	assert.Equal(t, "tiingo_crypto", trades[0].Source)

	quotePaths, err := recorder.ListBatches(dir, "consol_feeds", enum.EventTypeQuote)
	require.NoError(t, err)
	require.Len(t, quotePaths, 1)

	rows, err := p.Catalog.List(t.Context(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	for _, st := range p.Supervisor.Status() {
		assert.False(t, st.Running, st.Name)
		assert.Empty(t, st.Error, st.Name)
	}
	assert.True(t, p.Supervisor.Healthy())
}

func TestPipeline_FatalFeedIsIsolated(t *testing.T) {
	dir := t.TempDir()
	iex := newScriptConn(rejected)
	crypto := newScriptConn(cryptoTrade)

	p, err := Build(testConfig(dir), Option{
		Dialers: map[enum.Feed]websocket.Dialer{
			enum.FeedIEX:    &onceDialer{conn: iex},
			enum.FeedCrypto: &onceDialer{conn: crypto},
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- p.Supervisor.Run(ctx) }()

	waitConsumed(t, crypto)
	require.Eventually(t, func() bool { return !p.Supervisor.Healthy() }, 5*time.Second, 5*time.Millisecond)

	var iexStatus, cryptoStatus UnitStatus
	for _, st := range p.Supervisor.Status() {
		switch {
		case st.Kind == KindFeed && st.Name == "iex":
			iexStatus = st
		case st.Kind == KindFeed && st.Name == "crypto":
			cryptoStatus = st
		}
	}
	assert.False(t, iexStatus.Running)
	assert.NotEmpty(t, iexStatus.Error)
	assert.True(t, cryptoStatus.Running)
	assert.Equal(t, websocket.StateStreaming.String(), cryptoStatus.State)

	cancel()
	require.ErrorIs(t, <-done, exception.ErrFeedUnauthorized)

	paths, err := recorder.ListBatches(dir, "consol_feeds", enum.EventTypeTrade)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestSupervisor_Validation(t *testing.T) {
	_, err := NewSupervisor(nil, nil, nil)
	require.ErrorIs(t, err, exception.ErrNilInstance)

	p, err := Build(testConfig(t.TempDir()), Option{})
	require.NoError(t, err)
	assert.Len(t, p.Supervisor.Status(), 5)
	assert.Equal(t, KindFeed, p.Supervisor.Status()[0].Kind)
	assert.False(t, p.Supervisor.Status()[0].Running)

	cfg := testConfig(t.TempDir())
	cfg.Bus.Overflow = "block"
	_, err = Build(cfg, Option{})
	require.ErrorIs(t, err, exception.ErrInvalidConfig)
}

func TestSupervisor_FailedConsolidatorClosesItsQueue(t *testing.T) {
	nyc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	b := bus.New(bus.Option{})
	metrics := obs.NewMetrics()
	conn := newPushConn()
	feed, err := ingest.NewFeed(ingest.FeedConfig{
		Feed:           enum.FeedIEX,
		URL:            "wss://iex.test",
		APIKey:         "key",
		ThresholdLevel: 6,
		Tickers:        []string{"spy", "aapl"},
		Backoff:        websocket.Backoff{Min: time.Millisecond, Factor: 1},
		Dialer:         &onceDialer{conn: conn},
	}, ingest.NewNormalizer(ingest.NormalizerOption{Location: nyc, ETFs: []string{"spy"}}), b, metrics)
	require.NoError(t, err)
	worker, err := consolidator.NewWorker(consolidator.Config{EventType: enum.EventTypeRefPx, FlushThreshold: 1},
		b.Queue(enum.EventTypeRefPx), failingSink{err: exception.ErrStorageUnwritable}, metrics)
	require.NoError(t, err)

	s, err := NewSupervisor(b, []*ingest.Feed{feed}, []*consolidator.Worker{worker})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	conn.frames <- iexSPY
	ref := &model.MarketEvent{
		AssetType: enum.AssetTypeETF,
		EventType: enum.EventTypeRefPx,
		Symbol:    "spy",
		EventTime: time.Now(),
		Price:     decimal.RequireFromString("510.1"),
	}
	require.Eventually(t, func() bool {
		return errors.Is(b.Publish(ref), bus.ErrQueueClosed)
	}, 5*time.Second, 5*time.Millisecond)
	require.ErrorIs(t, b.Publish(ref), bus.ErrQueueClosed)

	trade := *ref
	trade.EventType = enum.EventTypeTrade
	require.NoError(t, b.Publish(&trade), "other queues stay open")

	conn.frames <- iexAAPL
	expected := `
# HELP mdingest_publish_failures_total Events the bus refused.
# TYPE mdingest_publish_failures_total counter
mdingest_publish_failures_total{feed="iex"} 1
`
	require.Eventually(t, func() bool {
		return testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "mdingest_publish_failures_total") == nil
	}, 5*time.Second, 5*time.Millisecond)

	for _, st := range s.Status() {
		switch st.Kind {
		case KindFeed:
			assert.True(t, st.Running)
		case KindConsolidator:
			assert.False(t, st.Running)
			assert.NotEmpty(t, st.Error)
		}
	}

	cancel()
	require.ErrorIs(t, <-done, exception.ErrStorageUnwritable)
}
