package pipeline

import (
	"context"
	"sync"
	"time"

	"mdingest/internal/bus"
	"mdingest/internal/consolidator"
	"mdingest/internal/ingest"
	"mdingest/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	KindFeed         = "feed"
	KindConsolidator = "consolidator"
)

// UnitStatus is a point-in-time view of one feed or consolidator.
type UnitStatus struct {
	Kind    string    `json:"kind"`
	Name    string    `json:"name"`
	State   string    `json:"state"`
	Running bool      `json:"running"`
	Error   string    `json:"error,omitempty"`
	Started time.Time `json:"started,omitzero"`
	Stopped time.Time `json:"stopped,omitzero"`
}

type unit struct {
	kind  string
	name  string
	state func() string
	run   func(ctx context.Context) error
	fail  func(err error)

	mu      sync.Mutex
	running bool
	err     error
	started time.Time
	stopped time.Time
}

func (u *unit) status() UnitStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	s := UnitStatus{
		Kind:    u.kind,
		Name:    u.name,
		State:   u.state(),
		Running: u.running,
		Started: u.started,
		Stopped: u.stopped,
	}
	if u.err != nil {
		s.Error = u.err.Error()
	}
	return s
}

func (u *unit) exec(ctx context.Context) error {
	u.mu.Lock()
	u.running, u.started = true, time.Now()
	u.mu.Unlock()

	err := u.guard(ctx)

	u.mu.Lock()
	u.running, u.err, u.stopped = false, err, time.Now()
	u.mu.Unlock()

	if err != nil {
		logs.Errorf("pipeline: %s %s stopped, err: %+v", u.kind, u.name, err)
		if u.fail != nil {
			u.fail(err)
		}
	}
	return err
}

func (u *unit) guard(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%s %s panic: %v", u.kind, u.name, r)
		}
	}()
	return u.run(ctx)
}

// Supervisor runs every feed and consolidator as an independent unit. A unit
// that stops with an error is reported and the others keep running.
type Supervisor struct {
	bus     *bus.Bus
	feeds   []*unit
	workers []*unit
	running sync.Mutex
}

func NewSupervisor(b *bus.Bus, feeds []*ingest.Feed, workers []*consolidator.Worker) (*Supervisor, error) {
	if b == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "pipeline: bus")
	}
	if len(workers) == 0 {
		return nil, errors.Wrap(exception.ErrInvalidConfig, "pipeline: no consolidator")
	}

	s := &Supervisor{bus: b}
	for _, f := range feeds {
		s.feeds = append(s.feeds, &unit{
			kind:  KindFeed,
			name:  f.Name(),
			state: func() string { return f.State().String() },
			run:   f.Run,
		})
	}
	for _, w := range workers {
		s.workers = append(s.workers, &unit{
			kind:  KindConsolidator,
			name:  w.Name(),
			state: func() string { return w.State().String() },
			run:   w.Run,
			fail:  s.closeQueue(w),
		})
	}
	return s, nil
}

// closeQueue shuts the queue of a consolidator that stopped with an error, so
// feeds see publish failures instead of filling a queue nobody reads.
func (s *Supervisor) closeQueue(w *consolidator.Worker) func(error) {
	return func(err error) {
		q := s.bus.Queue(w.EventType())
		if q == nil {
			return
		}
		q.Close()
		logs.Errorf("pipeline: consolidator %s is down, closed its queue with %d pending events, err: %v", w.Name(), q.Len(), err)
	}
}
