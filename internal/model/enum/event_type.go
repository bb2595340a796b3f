package enum

import "strings"

// EventType trade, quote, ref_px
type EventType uint8

const (
	_event_type_beg EventType = iota
	EventTypeTrade
	EventTypeQuote
	EventTypeRefPx
	_event_type_end
)

var eventTypeNames = [...]string{
	EventTypeTrade: "trade",
	EventTypeQuote: "quote",
	EventTypeRefPx: "ref_px",
}

func (e EventType) IsAvailable() bool {
	return e > _event_type_beg && e < _event_type_end
}

func (e EventType) String() string {
	if !e.IsAvailable() {
		return "unknown"
	}
	return eventTypeNames[e]
}

// EventTypes lists every available event type in declaration order.
func EventTypes() []EventType {
	types := make([]EventType, 0, int(_event_type_end)-1)
	for e := _event_type_beg + 1; e < _event_type_end; e++ {
		types = append(types, e)
	}
	return types
}

func ParseEventType(s string) (EventType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trade":
		return EventTypeTrade, true
	case "quote":
		return EventTypeQuote, true
	case "ref_px", "refpx":
		return EventTypeRefPx, true
	default:
		return 0, false
	}
}
