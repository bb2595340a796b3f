package pipeline

import (
	"context"
	"sync"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"
	"mdingest/pkg/websocket"
)

// scriptConn serves msgs, reports when they are consumed, then blocks until closed.
type scriptConn struct {
	mu       sync.Mutex
	msgs     []string
	consumed chan struct{}
	closed   chan struct{}
	once     sync.Once
	drained  sync.Once
}

func newScriptConn(msgs ...string) *scriptConn {
	return &scriptConn{msgs: msgs, consumed: make(chan struct{}), closed: make(chan struct{})}
}

func (c *scriptConn) ReadMessage(ctx context.Context) (websocket.MessageType, []byte, error) {
	c.mu.Lock()
	if len(c.msgs) > 0 {
		m := c.msgs[0]
		c.msgs = c.msgs[1:]
		c.mu.Unlock()
		return websocket.MessageText, []byte(m), nil
	}
	c.mu.Unlock()

	c.drained.Do(func() { close(c.consumed) })
	<-c.closed
	return 0, nil, exception.ErrWebSocketClosed
}

func (c *scriptConn) WriteMessage(ctx context.Context, msgType websocket.MessageType, payload []byte) error {
	return nil
}

func (c *scriptConn) Close(code websocket.CloseCode, reason string) error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// onceDialer hands out conn once; later dials fail.
type onceDialer struct {
	mu   sync.Mutex
	conn websocket.Conn
}

func (d *onceDialer) Dial(ctx context.Context) (websocket.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil, exception.ErrHandshake
	}
	c := d.conn
	d.conn = nil
	return c, nil
}

// pushConn serves frames as the test pushes them, until closed.
type pushConn struct {
	frames chan string
	closed chan struct{}
	once   sync.Once
}

func newPushConn() *pushConn {
	return &pushConn{frames: make(chan string), closed: make(chan struct{})}
}

func (c *pushConn) ReadMessage(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case m := <-c.frames:
		return websocket.MessageText, []byte(m), nil
	case <-c.closed:
		return 0, nil, exception.ErrWebSocketClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *pushConn) WriteMessage(ctx context.Context, msgType websocket.MessageType, payload []byte) error {
	return nil
}

func (c *pushConn) Close(code websocket.CloseCode, reason string) error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// failingSink rejects every batch with err.
type failingSink struct {
	err error
}

func (s failingSink) Write(_ context.Context, _ enum.EventType, _ []*model.MarketEvent) (model.BatchInfo, error) {
	return model.BatchInfo{}, s.err
}
