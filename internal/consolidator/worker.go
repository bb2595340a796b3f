package consolidator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/internal/obs"
	"mdingest/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Source is the queue a worker consumes. *bus.Queue implements it.
type Source interface {
	Pop(ctx context.Context) (*model.MarketEvent, error)
	TryPop() (*model.MarketEvent, bool)
}

// Sink persists one batch. *recorder.Writer and *catalog.Sink implement it.
type Sink interface {
	Write(ctx context.Context, eventType enum.EventType, events []*model.MarketEvent) (model.BatchInfo, error)
}

// State is the lifecycle state of a Worker.
type State uint8

const (
	_state_beg State = iota
	StateIdle
	StateBuffering
	StateFlushing
	_state_end
)

func (s State) IsAvailable() bool {
	return s > _state_beg && s < _state_end
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Worker consumes one event type: dedup into a buffer, flush through the sink at the threshold.
type Worker struct {
	cfg     Config
	src     Source
	sink    Sink
	metrics *obs.Metrics
	buf     *Buffer

	buffered atomic.Int64
	flushing atomic.Int32
	running  atomic.Bool

	flushCh  chan []*model.MarketEvent
	fatalMu  sync.Mutex
	fatalErr error
}

func NewWorker(cfg Config, src Source, sink Sink, metrics *obs.Metrics) (*Worker, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "consolidator: source")
	}
	if sink == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "consolidator: sink")
	}
	return &Worker{
		cfg:     cfg,
		src:     src,
		sink:    sink,
		metrics: metrics,
		buf:     NewBuffer(cfg.FlushThreshold),
	}, nil
}

func (w *Worker) Name() string {
	return w.cfg.EventType.String()
}

func (w *Worker) EventType() enum.EventType {
	return w.cfg.EventType
}

// State reports flushing while a batch is being written, buffering while events wait, idle otherwise.
func (w *Worker) State() State {
	if w.flushing.Load() > 0 {
		return StateFlushing
	}
	if w.buffered.Load() > 0 {
		return StateBuffering
	}
	return StateIdle
}

// Run consumes until ctx is done or the source is closed, then drains what is
// already queued and flushes the remainder. Only fatal errors are returned.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.Errorf("consolidator: %s is already running", w.Name())
	}
	defer w.running.Store(false)

	var flusherDone chan struct{}
	if w.cfg.AsyncFlush {
		w.flushCh = make(chan []*model.MarketEvent, w.cfg.FlushQueue)
		flusherDone = make(chan struct{})
		go w.runFlusher(context.WithoutCancel(ctx), flusherDone)
	}

	logs.Infof("consolidator: %s started, threshold: %d, async: %t", w.Name(), w.cfg.FlushThreshold, w.cfg.AsyncFlush)
	err := w.loop(ctx)
	err = w.shutdown(ctx, err)

	if flusherDone != nil {
		close(w.flushCh)
		select {
		case <-flusherDone:
		case <-time.After(w.cfg.ShutdownTimeout):
			logs.Errorf("consolidator: %s flusher did not finish within %s", w.Name(), w.cfg.ShutdownTimeout)
		}
		if err == nil {
			err = w.fatal()
		}
	}
	logs.Infof("consolidator: %s stopped", w.Name())
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		e, err := w.src.Pop(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logs.Infof("consolidator: %s source done, err: %v", w.Name(), err)
			}
			return nil
		}
		if err := w.process(ctx, e); err != nil {
			return err
		}
		if err := w.fatal(); err != nil {
			return err
		}
	}
}

// shutdown drains queued events without blocking and flushes the buffer once, bounded by ShutdownTimeout.
func (w *Worker) shutdown(ctx context.Context, cause error) error {
	if cause != nil {
		if n := w.buf.Len(); n > 0 {
			logs.Errorf("consolidator: %s stopped with %d buffered records, err: %+v", w.Name(), n, cause)
		}
		return cause
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.ShutdownTimeout)
	defer cancel()

	drained := 0
	for sctx.Err() == nil {
		e, ok := w.src.TryPop()
		if !ok {
			break
		}
		drained++
		if err := w.process(sctx, e); err != nil {
			return err
		}
	}
	if drained > 0 {
		logs.Infof("consolidator: %s drained %d queued events", w.Name(), drained)
	}
	return w.flush(sctx)
}

func (w *Worker) process(ctx context.Context, e *model.MarketEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("consolidator: %s recovered from panic, err: %v", w.Name(), r)
			err = nil
		}
	}()

	if e == nil {
		logs.Errorf("consolidator: %s skip nil event", w.Name())
		return nil
	}

	w.metrics.IncConsumed(w.Name())
	if w.buf.Upsert(e) {
		w.metrics.IncDuplicate(w.Name())
	}
	w.buffered.Store(int64(w.buf.Len()))

	if w.buf.Len() >= w.cfg.FlushThreshold {
		return w.flush(ctx)
	}
	return nil
}

// flush drains the buffer into one batch. An empty buffer is a no-op.
func (w *Worker) flush(ctx context.Context) error {
	batch := w.buf.Drain()
	w.buffered.Store(0)
	if len(batch) == 0 {
		return nil
	}

	if w.cfg.AsyncFlush && w.flushCh != nil {
		w.flushing.Add(1)
		select {
		case w.flushCh <- batch:
			return nil
		case <-ctx.Done():
			w.flushing.Add(-1)
			return w.write(context.WithoutCancel(ctx), batch)
		}
	}

	w.flushing.Add(1)
	return w.write(ctx, batch)
}

// write persists batch. It expects the caller to have incremented flushing.
func (w *Worker) write(ctx context.Context, batch []*model.MarketEvent) error {
	defer w.flushing.Add(-1)

	start := time.Now()
	info, err := w.sink.Write(ctx, w.cfg.EventType, batch)
	w.metrics.ObserveFlush(w.Name(), len(batch), time.Since(start), err)
	if err != nil {
		logs.Errorf("consolidator: %s flush lost %d records, err: %+v", w.Name(), len(batch), err)
		if exception.IsFatal(err) {
			return err
		}
		return nil
	}

	logs.Infof("consolidator: %s flushed %d records to %s", w.Name(), info.Records, info.Path)
	return nil
}

func (w *Worker) runFlusher(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for batch := range w.flushCh {
		if err := w.fatal(); err != nil {
			logs.Errorf("consolidator: %s flush skipped, lost %d records, err: %+v", w.Name(), len(batch), err)
			w.flushing.Add(-1)
			continue
		}
		if err := w.write(ctx, batch); err != nil {
			w.setFatal(err)
		}
	}
}

func (w *Worker) setFatal(err error) {
	w.fatalMu.Lock()
	defer w.fatalMu.Unlock()
	if w.fatalErr == nil {
		w.fatalErr = err
	}
}

func (w *Worker) fatal() error {
	w.fatalMu.Lock()
	defer w.fatalMu.Unlock()
	return w.fatalErr
}
