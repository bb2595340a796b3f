package ingest

import (
	"context"
	"sync"
	"sync/atomic"

	"mdingest/internal/model"
	"mdingest/pkg/exception"
	"mdingest/pkg/websocket"
)

type fakeConn struct {
	msgs    []string
	failErr error

	mu      sync.Mutex
	written []string
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn(failErr error, msgs ...string) *fakeConn {
	return &fakeConn{msgs: msgs, failErr: failErr, closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage(ctx context.Context) (websocket.MessageType, []byte, error) {
	if len(c.msgs) > 0 {
		m := c.msgs[0]
		c.msgs = c.msgs[1:]
		return websocket.MessageText, []byte(m), nil
	}
	if c.failErr != nil {
		return 0, nil, c.failErr
	}
	<-c.closed
	return 0, nil, exception.ErrWebSocketClosed
}

func (c *fakeConn) WriteMessage(ctx context.Context, msgType websocket.MessageType, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(payload))
	return nil
}

func (c *fakeConn) Close(code websocket.CloseCode, reason string) error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context) (websocket.Conn, error) {
	d.dials.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil, exception.ErrHandshake
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

type recordPublisher struct {
	mu     sync.Mutex
	events []*model.MarketEvent
	after  func(n int)
}

func (p *recordPublisher) Publish(ev *model.MarketEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	n := len(p.events)
	p.mu.Unlock()
	if p.after != nil {
		p.after(n)
	}
	return nil
}

func (p *recordPublisher) Events() []*model.MarketEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.MarketEvent(nil), p.events...)
}
