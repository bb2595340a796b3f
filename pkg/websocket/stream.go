package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"mdingest/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// ErrRetriesExhausted is returned by Run when Backoff.MaxRetries consecutive failures occurred.
var ErrRetriesExhausted = exception.ErrWebSocketRetriesExhausted

// Stream is a reconnecting reader over a single websocket endpoint.
//
// Run drives the state machine connecting -> streaming -> backoff -> connecting until the
// context is canceled, a fatal error is observed, or retries are exhausted; it then ends in closed.
type Stream struct {
	opt        Option
	state      atomic.Uint32
	reconnects atomic.Uint64
	running    atomic.Bool
}

// NewStream validates opt and creates a Stream.
func NewStream(opt Option) (*Stream, error) {
	if opt.Dialer == nil {
		return nil, exception.ErrWebSocketNilDialer
	}
	if opt.Backoff.isZero() {
		opt.Backoff = DefaultBackoff()
	}
	if opt.IsFatal == nil {
		opt.IsFatal = exception.IsFatal
	}
	if opt.Name == "" {
		opt.Name = "stream"
	}
	return &Stream{opt: opt}, nil
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Reconnects returns how many times the stream entered backoff.
func (s *Stream) Reconnects() uint64 {
	return s.reconnects.Load()
}

func (s *Stream) setState(st State) {
	if State(s.state.Swap(uint32(st))) == st {
		return
	}
	if s.opt.OnStateChange != nil {
		s.opt.OnStateChange(st)
	}
}

// Run reads messages and hands them to handler in receive order.
// It returns nil on cancellation, the fatal error that stopped it, or ErrRetriesExhausted.
func (s *Stream) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.Wrap(exception.ErrNilInstance, "websocket: nil handler")
	}
	if !s.running.CompareAndSwap(false, true) {
		return errors.Errorf("websocket: stream %s is already running", s.opt.Name)
	}
	defer s.running.Store(false)
	defer s.setState(StateClosed)

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		s.setState(StateConnecting)
		conn, err := s.opt.Dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			logs.Errorf("websocket: %s dial failed, attempt: %d, err: %+v", s.opt.Name, failures, err)
			if err := s.sleepBackoff(ctx, failures); err != nil {
				return err
			}
			continue
		}
		failures = 0

		err = s.session(ctx, conn, handler)
		if s.opt.OnDisconnect != nil {
			s.opt.OnDisconnect(err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && s.opt.IsFatal(err) {
			logs.Errorf("websocket: %s stopped, err: %+v", s.opt.Name, err)
			return err
		}

		failures++
		logs.Errorf("websocket: %s disconnected, err: %+v", s.opt.Name, err)
		if err := s.sleepBackoff(ctx, failures); err != nil {
			return err
		}
	}
}

func (s *Stream) session(ctx context.Context, conn Conn, handler Handler) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close(CloseGoingAway, "shutdown")
	})
	defer func() {
		if stop() {
			_ = conn.Close(CloseNormal, "session_end")
		}
	}()

	if s.opt.OnConnect != nil {
		if err := s.opt.OnConnect(ctx, conn); err != nil {
			return errors.Wrap(err, "on connect")
		}
	}

	s.setState(StateStreaming)
	logs.Infof("websocket: %s streaming", s.opt.Name)
	for {
		msgType, payload, err := conn.ReadMessage(ctx)
		if err != nil {
			return err
		}
		if msgType != MessageText && msgType != MessageBinary {
			continue
		}
		if err := handler(ctx, msgType, payload); err != nil {
			if s.opt.IsFatal(err) {
				return err
			}
			logs.Errorf("websocket: %s handler failed, err: %+v", s.opt.Name, err)
		}
	}
}

func (s *Stream) sleepBackoff(ctx context.Context, failures int) error {
	if s.opt.Backoff.Exhausted(failures) {
		return errors.Wrapf(ErrRetriesExhausted, "%s after %d failures", s.opt.Name, failures)
	}
	s.setState(StateBackoff)
	s.reconnects.Add(1)

	timer := time.NewTimer(s.opt.Backoff.Next(failures))
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return nil
}
