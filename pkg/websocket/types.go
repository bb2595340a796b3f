package websocket

import (
	"context"
	"time"
)

// MessageType represents a WebSocket message type.
// Values match RFC 6455 opcodes where applicable.
type MessageType uint8

const (
	// MessageText is a text data frame.
	MessageText MessageType = 1
	// MessageBinary is a binary data frame.
	MessageBinary MessageType = 2
	// MessageClose is a close control frame.
	MessageClose MessageType = 8
	// MessagePing is a ping control frame.
	MessagePing MessageType = 9
	// MessagePong is a pong control frame.
	MessagePong MessageType = 10
)

// CloseCode is a WebSocket close code.
type CloseCode uint16

const (
	// CloseNormal indicates a normal closure.
	CloseNormal CloseCode = 1000
	// CloseGoingAway indicates the endpoint is shutting down.
	CloseGoingAway CloseCode = 1001
)

// State is the lifecycle state of a Stream.
type State uint8

const (
	_state_beg State = iota
	StateConnecting
	StateStreaming
	StateBackoff
	StateClosed
	_state_end
)

func (s State) IsAvailable() bool {
	return s > _state_beg && s < _state_end
}

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Backoff defines reconnect backoff behavior.
type Backoff struct {
	// Min is the first (or fixed) backoff duration.
	Min time.Duration
	// Max caps exponential growth.
	Max time.Duration
	// Factor multiplies the delay for each retry attempt. Values <= 1 keep the delay fixed at Min.
	Factor float64
	// Jitter adds randomization as a fraction of the delay (0-1).
	Jitter float64
	// MaxRetries bounds consecutive failures. 0 means unlimited.
	MaxRetries int
}

// Writer sends messages on the active connection.
type Writer interface {
	WriteMessage(ctx context.Context, msgType MessageType, payload []byte) error
}

// Conn is a minimal interface for a WebSocket connection.
type Conn interface {
	Writer
	// ReadMessage blocks until the next data message arrives or the connection fails.
	ReadMessage(ctx context.Context) (MessageType, []byte, error)
	Close(code CloseCode, reason string) error
}

// Dialer creates new connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Handler consumes one received message. Payload must not be retained after return.
type Handler func(ctx context.Context, msgType MessageType, payload []byte) error

// Option configures a Stream.
type Option struct {
	// Name identifies the stream in logs.
	Name string
	// Dialer opens connections. Required.
	Dialer Dialer
	// Backoff controls reconnect delays. Zero value uses DefaultBackoff.
	Backoff Backoff
	// OnConnect runs once per established connection, before any message is read.
	OnConnect func(ctx context.Context, w Writer) error
	// OnDisconnect receives the cause whenever a connection ends.
	OnDisconnect func(err error)
	// OnStateChange observes state transitions.
	OnStateChange func(State)
	// IsFatal reports errors that must stop the stream instead of reconnecting.
	IsFatal func(error) bool
}
