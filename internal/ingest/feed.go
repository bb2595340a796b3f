package ingest

import (
	"context"
	"time"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/internal/obs"
	"mdingest/pkg/exception"
	"mdingest/pkg/websocket"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Publisher accepts normalized events. *bus.Bus implements it.
type Publisher interface {
	Publish(ev *model.MarketEvent) error
}

type FeedConfig struct {
	Feed           enum.Feed
	URL            string
	APIKey         string
	ThresholdLevel int
	Tickers        []string

	Backoff          websocket.Backoff
	HandshakeTimeout time.Duration
	Dialer           websocket.Dialer
}

// Feed runs one asset class end to end: subscribe, receive, normalize, publish.
type Feed struct {
	feed    enum.Feed
	conn    *Connection
	norm    *Normalizer
	pub     Publisher
	metrics *obs.Metrics
}

func NewFeed(cfg FeedConfig, norm *Normalizer, pub Publisher, metrics *obs.Metrics) (*Feed, error) {
	if pub == nil {
		return nil, exception.ErrFeedNilPublisher
	}
	if norm == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "normalizer")
	}

	sub, err := NewSubscribeRequest(cfg.APIKey, cfg.ThresholdLevel, cfg.Tickers)
	if err != nil {
		return nil, errors.Wrapf(err, "feed %s", cfg.Feed)
	}
	conn, err := NewConnection(ConnectionOption{
		Feed:             cfg.Feed,
		URL:              cfg.URL,
		Subscription:     sub,
		Backoff:          cfg.Backoff,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Dialer:           cfg.Dialer,
		Metrics:          metrics,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "feed %s", cfg.Feed)
	}

	return &Feed{
		feed:    cfg.Feed,
		conn:    conn,
		norm:    norm,
		pub:     pub,
		metrics: metrics,
	}, nil
}

func (f *Feed) Name() string {
	return f.feed.String()
}

func (f *Feed) State() websocket.State {
	return f.conn.State()
}

// Run blocks until ctx is done or the feed hits a fatal error.
func (f *Feed) Run(ctx context.Context) error {
	logs.Infof("ingest: %s feed started", f.feed)
	defer logs.Infof("ingest: %s feed stopped", f.feed)

	if err := f.conn.Stream(ctx, f.handle); err != nil {
		return errors.Wrapf(err, "feed %s", f.feed)
	}
	return nil
}

func (f *Feed) handle(_ context.Context, frame Frame) error {
	ev, err := f.norm.Normalize(f.feed, frame)
	if err != nil {
		logs.Errorf("ingest: %s skip frame, err: %+v", f.feed, err)
		f.metrics.IncSkipped(f.feed.String(), obs.SkipMalformed)
		return nil
	}
	if err := ev.Validate(); err != nil {
		logs.Errorf("ingest: %s skip event, err: %+v, payload: %s", f.feed, err, frame.raw())
		f.metrics.IncSkipped(f.feed.String(), obs.SkipMalformed)
		return nil
	}

	if err := f.pub.Publish(ev); err != nil {
		logs.Errorf("ingest: %s publish %s %s, err: %+v", f.feed, ev.EventType, ev.Symbol, err)
		f.metrics.IncPublishFailure(f.feed.String())
		return nil
	}
	f.metrics.IncPublished(f.feed.String(), ev.EventType.String())
	return nil
}
