package model

// DedupKey identifies "the same" market update within one flush cycle.
// EventTime is kept as UnixNano so equal instants in different zones collapse.
type DedupKey struct {
	Source    string
	Symbol    string
	EventTime int64
}
