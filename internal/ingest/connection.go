package ingest

import (
	"context"
	"net/http"
	"time"

	"mdingest/internal/model/enum"
	"mdingest/internal/obs"
	"mdingest/pkg/exception"
	"mdingest/pkg/websocket"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// FrameHandler consumes one market data frame.
type FrameHandler func(ctx context.Context, frame Frame) error

type ConnectionOption struct {
	Feed         enum.Feed
	URL          string
	Subscription SubscribeRequest
	Backoff      websocket.Backoff
	// HandshakeTimeout bounds the websocket upgrade. Ignored when Dialer is set.
	HandshakeTimeout time.Duration
	// Dialer overrides the TLS websocket dialer built from URL.
	Dialer  websocket.Dialer
	Metrics *obs.Metrics
}

// Connection is one vendor websocket session per asset class. It sends the
// subscription on every (re)connect and yields only market data frames.
type Connection struct {
	feed      enum.Feed
	subscribe []byte
	stream    *websocket.Stream
	metrics   *obs.Metrics
}

func NewConnection(opt ConnectionOption) (*Connection, error) {
	if !opt.Feed.IsAvailable() {
		return nil, errors.Wrapf(exception.ErrFeedUnknownAsset, "feed %d", opt.Feed)
	}
	payload, err := opt.Subscription.Marshal()
	if err != nil {
		return nil, err
	}

	dialer := opt.Dialer
	if dialer == nil {
		if opt.URL == "" {
			return nil, errors.Wrapf(exception.ErrInvalidConfig, "empty url of feed %s", opt.Feed)
		}
		dialer = websocket.NewDialer(opt.URL, opt.HandshakeTimeout)
	}

	c := &Connection{
		feed:      opt.Feed,
		subscribe: payload,
		metrics:   opt.Metrics,
	}
	c.stream, err = websocket.NewStream(websocket.Option{
		Name:      opt.Feed.String(),
		Dialer:    dialer,
		Backoff:   opt.Backoff,
		OnConnect: c.onConnect,
		OnStateChange: func(s websocket.State) {
			if s == websocket.StateBackoff {
				c.metrics.IncReconnect(c.feed.String())
			}
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "new stream")
	}

	logs.Infof("ingest: %s subscription: %+v", opt.Feed, opt.Subscription.Redacted())
	return c, nil
}

// State returns the lifecycle state of the underlying stream.
func (c *Connection) State() websocket.State {
	return c.stream.State()
}

func (c *Connection) onConnect(ctx context.Context, w websocket.Writer) error {
	if err := w.WriteMessage(ctx, websocket.MessageText, c.subscribe); err != nil {
		return errors.Wrap(err, "write subscribe payload")
	}
	return nil
}

// Stream connects, subscribes and hands every market data frame to handler in
// receive order, reconnecting transparently. Init and heartbeat messages are
// discarded. It returns nil on cancellation or the fatal error that stopped it.
func (c *Connection) Stream(ctx context.Context, handler FrameHandler) error {
	return c.stream.Run(ctx, func(ctx context.Context, _ websocket.MessageType, payload []byte) error {
		frame, ok, err := c.filter(payload)
		if err != nil || !ok {
			return err
		}
		return handler(ctx, frame)
	})
}

func (c *Connection) filter(payload []byte) (Frame, bool, error) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		logs.Errorf("ingest: %s skip message, err: %+v, payload: %s", c.feed, err, payload)
		c.metrics.IncSkipped(c.feed.String(), obs.SkipMalformed)
		return nil, false, nil
	}

	switch env.MessageType {
	case MessageTypeInit:
		logs.Infof("ingest: %s connected, data: %s", c.feed, env.Data)
		c.metrics.IncSkipped(c.feed.String(), obs.SkipControl)
		return nil, false, nil
	case MessageTypeHeartbeat:
		c.metrics.IncSkipped(c.feed.String(), obs.SkipControl)
		return nil, false, nil
	case MessageTypeError:
		c.metrics.IncSkipped(c.feed.String(), obs.SkipVendorError)
		if env.Response != nil && (env.Response.Code == http.StatusUnauthorized || env.Response.Code == http.StatusForbidden) {
			return nil, false, errors.Wrapf(exception.ErrFeedUnauthorized, "%s, code: %d, message: %s", c.feed, env.Response.Code, env.Response.Message)
		}
		logs.Errorf("ingest: %s vendor error, payload: %s", c.feed, payload)
		return nil, false, nil
	}

	frame, err := DecodeFrame(env)
	if err != nil {
		logs.Errorf("ingest: %s skip message, err: %+v, payload: %s", c.feed, err, payload)
		c.metrics.IncSkipped(c.feed.String(), obs.SkipMalformed)
		return nil, false, nil
	}
	return frame, true, nil
}
