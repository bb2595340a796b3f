package model

import (
	"time"

	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// MarketEvent is the canonical normalized market update.
//
// Only the payload fields matching EventType are meaningful:
// trade uses LastSize/LastPrice (and Venue when the vendor provides it),
// quote uses Bid/Ask/Mid/BidSize/AskSize, ref_px uses Price.
type MarketEvent struct {
	AssetType enum.AssetType
	EventType enum.EventType
	Symbol    string
	EventTime time.Time
	CreatedAt time.Time
	Vendor    string
	Source    string

	// trade
	LastSize  decimal.Decimal
	LastPrice decimal.Decimal
	Venue     string

	// quote
	Bid     decimal.Decimal
	Ask     decimal.Decimal
	Mid     decimal.Decimal
	BidSize decimal.Decimal
	AskSize decimal.Decimal

	// ref_px
	Price decimal.Decimal
}

// Key returns the dedup key of the event.
func (e *MarketEvent) Key() DedupKey {
	return DedupKey{
		Source:    e.Source,
		Symbol:    e.Symbol,
		EventTime: e.EventTime.UnixNano(),
	}
}

// Validate checks the invariants an event must hold before it is published.
func (e *MarketEvent) Validate() error {
	if e == nil {
		return exception.ErrNilInstance
	}
	if !e.AssetType.IsAvailable() {
		return errors.Wrapf(exception.ErrInvalidArgument, "asset type %d", e.AssetType)
	}
	if !e.EventType.IsAvailable() {
		return errors.Wrapf(exception.ErrInvalidArgument, "event type %d", e.EventType)
	}
	if e.Symbol == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "empty symbol")
	}
	if e.EventTime.IsZero() {
		return errors.Wrap(exception.ErrInvalidArgument, "event time is not resolved")
	}
	return nil
}
