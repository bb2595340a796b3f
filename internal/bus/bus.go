package bus

import (
	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"

	"github.com/yanun0323/errors"
)

// Option configures the queues of a Bus.
type Option struct {
	Capacity int
	Overflow OverflowPolicy
}

// Bus holds one queue per event type. Feeds publish, one consolidator per event type consumes.
type Bus struct {
	queues map[enum.EventType]*Queue
}

func New(opt Option) *Bus {
	b := &Bus{queues: make(map[enum.EventType]*Queue, len(enum.EventTypes()))}
	for _, t := range enum.EventTypes() {
		b.queues[t] = NewQueue(opt.Capacity, opt.Overflow)
	}
	return b
}

// Publish routes ev to the queue of its event type.
func (b *Bus) Publish(ev *model.MarketEvent) error {
	if ev == nil {
		return exception.ErrBusNilEvent
	}
	q, ok := b.queues[ev.EventType]
	if !ok {
		return errors.Wrapf(exception.ErrBusUnknownEventType, "event type %d", ev.EventType)
	}
	if err := q.Publish(ev); err != nil {
		return errors.Wrapf(err, "publish %s %s", ev.EventType, ev.Symbol)
	}
	return nil
}

// Queue returns the queue of t, or nil for an unknown event type.
func (b *Bus) Queue(t enum.EventType) *Queue {
	return b.queues[t]
}

// Close closes every queue.
func (b *Bus) Close() {
	for _, q := range b.queues {
		q.Close()
	}
}
