package pipeline

import (
	"mdingest/internal/bus"
	"mdingest/internal/catalog"
	"mdingest/internal/consolidator"
	"mdingest/internal/ingest"
	"mdingest/internal/model/enum"
	"mdingest/internal/obs"
	"mdingest/internal/ops"
	"mdingest/internal/recorder"
	"mdingest/pkg/exception"
	"mdingest/pkg/websocket"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

// Option overrides parts of the wiring, mostly for tests.
type Option struct {
	Metrics *obs.Metrics
	// Dialers replaces the websocket dialer of a feed.
	Dialers map[enum.Feed]websocket.Dialer
	// CatalogDB is used instead of opening catalog.dsn.
	CatalogDB *gorm.DB
}

// Pipeline is the wired process: feeds -> bus -> consolidators -> sink.
type Pipeline struct {
	Bus        *bus.Bus
	Supervisor *Supervisor
	Metrics    *obs.Metrics
	Writer     *recorder.Writer
	Catalog    *catalog.Catalog

	catalogDB *gorm.DB
}

// Build wires every component from cfg without starting anything.
func Build(cfg ops.Config, opt Option) (*Pipeline, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	metrics := opt.Metrics
	if metrics == nil {
		metrics = obs.NewMetrics()
	}

	overflow, ok := bus.ParseOverflowPolicy(cfg.Bus.Overflow)
	if !ok {
		return nil, errors.Wrapf(exception.ErrInvalidConfig, "bus overflow %q", cfg.Bus.Overflow)
	}
	b := bus.New(bus.Option{Capacity: cfg.Bus.Capacity, Overflow: overflow})
	for _, t := range enum.EventTypes() {
		q := b.Queue(t)
		metrics.RegisterQueue(t.String(), q.Len, q.Drops)
	}

	writer, err := recorder.NewWriter(recorder.Config{
		Dir:         cfg.Consolidator.Dir,
		FilePrefix:  cfg.Consolidator.FilePrefix,
		Compression: cfg.Consolidator.Compression,
		Location:    loc,
	})
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Bus: b, Metrics: metrics, Writer: writer}

	var sink consolidator.Sink = writer
	if cfg.Catalog.Enabled {
		db := opt.CatalogDB
		if db == nil {
			if db, err = catalog.Open(catalog.Option{DSN: cfg.Catalog.DSN}); err != nil {
				return nil, err
			}
			p.catalogDB = db
		}
		if p.Catalog, err = catalog.New(db); err != nil {
			p.Close()
			return nil, err
		}
		if sink, err = catalog.NewSink(writer, p.Catalog); err != nil {
			p.Close()
			return nil, err
		}
		logs.Info("pipeline: batch catalog enabled")
	}

	norm := ingest.NewNormalizer(ingest.NormalizerOption{
		Vendor:   cfg.Vendor.Name,
		Location: loc,
		ETFs:     cfg.Tickers.ETF,
	})
	backoff := websocket.Backoff{
		Min:        cfg.Reconnect.Backoff,
		Max:        cfg.Reconnect.MaxBackoff,
		Factor:     cfg.Reconnect.Factor,
		Jitter:     cfg.Reconnect.Jitter,
		MaxRetries: cfg.Reconnect.MaxRetries,
	}

	var feeds []*ingest.Feed
	for _, f := range cfg.EnabledFeeds() {
		fc := cfg.Feeds.Of(f)
		feed, err := ingest.NewFeed(ingest.FeedConfig{
			Feed:             f,
			URL:              fc.URL,
			APIKey:           cfg.Vendor.APIKey,
			ThresholdLevel:   fc.ThresholdLevel,
			Tickers:          cfg.Tickers.ForFeed(f),
			Backoff:          backoff,
			HandshakeTimeout: cfg.Dial.HandshakeTimeout,
			Dialer:           opt.Dialers[f],
		}, norm, b, metrics)
		if err != nil {
			p.Close()
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	var workers []*consolidator.Worker
	for _, t := range enum.EventTypes() {
		w, err := consolidator.NewWorker(consolidator.Config{
			EventType:       t,
			FlushThreshold:  cfg.Consolidator.FlushThreshold,
			AsyncFlush:      cfg.Consolidator.AsyncFlush,
			FlushQueue:      cfg.Consolidator.FlushQueue,
			ShutdownTimeout: cfg.Consolidator.ShutdownTimeout,
		}, b.Queue(t), sink, metrics)
		if err != nil {
			p.Close()
			return nil, err
		}
		workers = append(workers, w)
	}

	if p.Supervisor, err = NewSupervisor(b, feeds, workers); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the catalog connection opened by Build.
func (p *Pipeline) Close() {
	if p == nil || p.catalogDB == nil {
		return
	}
	if err := catalog.Close(p.catalogDB); err != nil {
		logs.Errorf("pipeline: close catalog, err: %+v", err)
	}
	p.catalogDB = nil
}
