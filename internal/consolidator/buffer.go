package consolidator

import "mdingest/internal/model"

// Buffer deduplicates events by key. The value of a key is the most recent event,
// the position of a key is where it was first seen. Not safe for concurrent use.
type Buffer struct {
	index  map[model.DedupKey]int
	events []*model.MarketEvent
}

func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{
		index:  make(map[model.DedupKey]int, capacity),
		events: make([]*model.MarketEvent, 0, capacity),
	}
}

// Upsert stores e under its key and reports whether an earlier event was replaced.
func (b *Buffer) Upsert(e *model.MarketEvent) (replaced bool) {
	key := e.Key()
	if i, ok := b.index[key]; ok {
		b.events[i] = e
		return true
	}
	b.index[key] = len(b.events)
	b.events = append(b.events, e)
	return false
}

func (b *Buffer) Len() int {
	return len(b.events)
}

// Drain returns the buffered events in first-seen key order and empties the buffer.
func (b *Buffer) Drain() []*model.MarketEvent {
	if len(b.events) == 0 {
		return nil
	}
	out := b.events
	b.events = make([]*model.MarketEvent, 0, cap(out))
	clear(b.index)
	return out
}
