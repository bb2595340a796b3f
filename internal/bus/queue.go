package bus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"mdingest/internal/model"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// OverflowPolicy defines queue behavior when a bounded queue is full.
type OverflowPolicy uint8

const (
	// OverflowDropOldest evicts the head to make room for the incoming event.
	OverflowDropOldest OverflowPolicy = iota
	// OverflowDropNewest rejects the incoming event.
	OverflowDropNewest
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDropOldest:
		return "drop_oldest"
	case OverflowDropNewest:
		return "drop_newest"
	default:
		return "unknown"
	}
}

func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop_oldest":
		return OverflowDropOldest, true
	case "drop_newest":
		return OverflowDropNewest, true
	default:
		return 0, false
	}
}

// Queue is an ordered, many-producer single-consumer event queue.
// Publish never blocks. A capacity of 0 leaves the queue unbounded.
type Queue struct {
	mu       sync.Mutex
	items    []*model.MarketEvent
	head     int
	capacity int
	policy   OverflowPolicy
	closed   bool
	notify   chan struct{}
	drops    atomic.Uint64
}

// NewQueue allocates a queue. capacity <= 0 means unbounded.
func NewQueue(capacity int, policy OverflowPolicy) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		policy:   policy,
		notify:   make(chan struct{}, 1),
	}
}

// Publish enqueues an event without blocking.
func (q *Queue) Publish(e *model.MarketEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.capacity > 0 && q.lenLocked() >= q.capacity {
		q.drops.Add(1)
		if q.policy == OverflowDropNewest {
			return ErrQueueFull
		}
		q.items[q.head] = nil
		q.head++
		q.compactLocked()
	}
	q.items = append(q.items, e)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop blocks until an event is available, the context is done, or the queue is closed and empty.
func (q *Queue) Pop(ctx context.Context) (*model.MarketEvent, error) {
	for {
		e, ok, closed := q.pop()
		if ok {
			return e, nil
		}
		if closed {
			return nil, ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// TryPop returns the head event without blocking.
func (q *Queue) TryPop() (*model.MarketEvent, bool) {
	e, ok, _ := q.pop()
	return e, ok
}

func (q *Queue) pop() (e *model.MarketEvent, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() == 0 {
		return nil, false, q.closed
	}
	e = q.items[q.head]
	q.items[q.head] = nil
	q.head++
	q.compactLocked()
	return e, true, q.closed
}

// compactLocked reclaims the consumed prefix so the backing array stays proportional to the live length.
func (q *Queue) compactLocked() {
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 1024 && q.head*2 > len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

func (q *Queue) lenLocked() int {
	return len(q.items) - q.head
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Drops returns how many events were discarded by the overflow policy.
func (q *Queue) Drops() uint64 {
	return q.drops.Load()
}

// Close stops the queue from accepting new events. Queued events can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.notify)
}
