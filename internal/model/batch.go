package model

import (
	"time"

	"mdingest/internal/model/enum"
)

// BatchInfo describes one flushed batch file.
type BatchInfo struct {
	EventType      enum.EventType
	Path           string
	Records        int
	FirstEventTime time.Time
	LastEventTime  time.Time
	FlushedAt      time.Time
}

// EventTimeRange returns the earliest and latest event time of events, skipping nil entries.
func EventTimeRange(events []*MarketEvent) (first, last time.Time) {
	for _, e := range events {
		if e == nil {
			continue
		}
		if first.IsZero() || e.EventTime.Before(first) {
			first = e.EventTime
		}
		if last.IsZero() || e.EventTime.After(last) {
			last = e.EventTime
		}
	}
	return first, last
}
