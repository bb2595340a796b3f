package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mdingest/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	msgs    [][]byte
	failErr error

	mu      sync.Mutex
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn(failErr error, msgs ...string) *fakeConn {
	c := &fakeConn{failErr: failErr, closed: make(chan struct{})}
	for _, m := range msgs {
		c.msgs = append(c.msgs, []byte(m))
	}
	return c
}

func (c *fakeConn) ReadMessage(ctx context.Context) (MessageType, []byte, error) {
	if len(c.msgs) > 0 {
		m := c.msgs[0]
		c.msgs = c.msgs[1:]
		return MessageText, m, nil
	}
	if c.failErr != nil {
		return 0, nil, c.failErr
	}
	<-c.closed
	return 0, nil, exception.ErrWebSocketClosed
}

func (c *fakeConn) WriteMessage(ctx context.Context, msgType MessageType, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close(code CloseCode, reason string) error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	dials atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.dials.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		if d.err != nil {
			return nil, d.err
		}
		return nil, exception.ErrHandshake
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func testBackoff() Backoff {
	return FixedBackoff(time.Millisecond)
}

func TestStream_ReconnectIsTransparent(t *testing.T) {
	first := newFakeConn(exception.ErrWebSocketClosed, "m1", "m2")
	second := newFakeConn(nil, "m3")
	d := &fakeDialer{conns: []*fakeConn{first, second}}

	var connects atomic.Int32
	s, err := NewStream(Option{
		Name:    "test",
		Dialer:  d,
		Backoff: testBackoff(),
		OnConnect: func(ctx context.Context, w Writer) error {
			connects.Add(1)
			return w.WriteMessage(ctx, MessageText, []byte("subscribe"))
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var got []string
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(_ context.Context, _ MessageType, payload []byte) error {
			got = append(got, string(payload))
			if len(got) == 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}

	assert.Equal(t, []string{"m1", "m2", "m3"}, got)
	assert.EqualValues(t, 2, connects.Load())
	assert.EqualValues(t, 1, s.Reconnects())
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, [][]byte{[]byte("subscribe")}, first.written)
	assert.Equal(t, [][]byte{[]byte("subscribe")}, second.written)
}

func TestStream_RetriesExhausted(t *testing.T) {
	d := &fakeDialer{}
	b := testBackoff()
	b.MaxRetries = 3
	s, err := NewStream(Option{Dialer: d, Backoff: b})
	require.NoError(t, err)

	err = s.Run(t.Context(), func(context.Context, MessageType, []byte) error { return nil })
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.True(t, exception.IsFatal(err))
	assert.EqualValues(t, 4, d.dials.Load())
	assert.Equal(t, StateClosed, s.State())
}

func TestStream_FatalHandlerErrorStops(t *testing.T) {
	d := &fakeDialer{conns: []*fakeConn{newFakeConn(nil, "bad")}}
	s, err := NewStream(Option{Dialer: d, Backoff: testBackoff()})
	require.NoError(t, err)

	err = s.Run(t.Context(), func(context.Context, MessageType, []byte) error {
		return exception.ErrFeedUnauthorized
	})
	require.ErrorIs(t, err, exception.ErrFeedUnauthorized)
	assert.EqualValues(t, 1, d.dials.Load())
}

func TestStream_NonFatalHandlerErrorContinues(t *testing.T) {
	d := &fakeDialer{conns: []*fakeConn{newFakeConn(nil, "a", "b")}}
	s, err := NewStream(Option{Dialer: d, Backoff: testBackoff()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	seen := 0
	err = s.Run(ctx, func(context.Context, MessageType, []byte) error {
		seen++
		if seen == 2 {
			cancel()
		}
		return errors.New("boom")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.EqualValues(t, 1, d.dials.Load())
}

func TestStream_OnConnectFailureReconnects(t *testing.T) {
	d := &fakeDialer{conns: []*fakeConn{newFakeConn(nil), newFakeConn(nil, "ok")}}
	calls := 0
	s, err := NewStream(Option{
		Dialer:  d,
		Backoff: testBackoff(),
		OnConnect: func(context.Context, Writer) error {
			calls++
			if calls == 1 {
				return errors.New("subscribe rejected")
			}
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	err = s.Run(ctx, func(context.Context, MessageType, []byte) error {
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestNewStream_NilDialer(t *testing.T) {
	_, err := NewStream(Option{})
	require.ErrorIs(t, err, exception.ErrWebSocketNilDialer)
}

func TestBackoff_Next(t *testing.T) {
	fixed := DefaultBackoff()
	assert.Equal(t, 10*time.Second, fixed.Next(1))
	assert.Equal(t, 10*time.Second, fixed.Next(7))

	exp := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	assert.Equal(t, 100*time.Millisecond, exp.Next(1))
	assert.Equal(t, 200*time.Millisecond, exp.Next(2))
	assert.Equal(t, 800*time.Millisecond, exp.Next(4))
	assert.Equal(t, time.Second, exp.Next(10))

	jittered := Backoff{Min: time.Second, Jitter: 0.5}
	for range 20 {
		d := jittered.Next(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}

	assert.False(t, Backoff{}.Exhausted(100))
	assert.False(t, Backoff{MaxRetries: 2}.Exhausted(2))
	assert.True(t, Backoff{MaxRetries: 2}.Exhausted(3))
}
