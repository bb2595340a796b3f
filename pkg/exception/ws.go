package exception

import "errors"

// WS errors
var (
	ErrHandshake                 = errors.New("websocket: handshake failed")
	ErrWebSocketClosed           = errors.New("websocket: connection closed")
	ErrWebSocketNilDialer        = errors.New("websocket: nil dialer")
	ErrWebSocketRetriesExhausted = errors.New("websocket: reconnect retries exhausted")
)
