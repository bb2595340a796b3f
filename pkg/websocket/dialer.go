package websocket

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"mdingest/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	defaultCloseWait        = time.Second
)

type dialer struct {
	url    string
	header http.Header
	ws     *websocket.Dialer
}

// NewDialer creates a TLS websocket dialer for url using the system root CAs.
func NewDialer(url string, handshakeTimeout time.Duration) Dialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	return &dialer{
		url:    url,
		header: http.Header{},
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			EnableCompression: true,
		},
	}
}

func (d *dialer) Dial(ctx context.Context) (Conn, error) {
	c, resp, err := d.ws.DialContext(ctx, d.url, d.header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, errors.Wrapf(exception.ErrHandshake, "dial %s, status: %d, err: %v", d.url, resp.StatusCode, err)
		}
		return nil, errors.Wrapf(exception.ErrHandshake, "dial %s, err: %v", d.url, err)
	}
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage(ctx context.Context) (MessageType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	typ, payload, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, errors.Wrapf(exception.ErrWebSocketClosed, "read: %v", err)
	}
	return MessageType(typ), payload, nil
}

func (c *wsConn) WriteMessage(ctx context.Context, msgType MessageType, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()
	}
	if err := c.conn.WriteMessage(int(msgType), payload); err != nil {
		return errors.Wrapf(exception.ErrWebSocketClosed, "write: %v", err)
	}
	return nil
}

// Close sends a close frame and closes the underlying connection. Safe to call more than once.
func (c *wsConn) Close(code CloseCode, reason string) error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(int(code), reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(defaultCloseWait))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
