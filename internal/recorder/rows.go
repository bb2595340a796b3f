package recorder

import (
	"time"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/internal/tz"

	"github.com/shopspring/decimal"
)

// TradeRow is the parquet schema of trade batches.
type TradeRow struct {
	AssetType string    `parquet:"asset_type"`
	EventType string    `parquet:"event_type"`
	Symbol    string    `parquet:"symbol"`
	EventTime time.Time `parquet:"event_time"`
	CreatedAt time.Time `parquet:"created_at"`
	Vendor    string    `parquet:"vendor"`
	Source    string    `parquet:"source"`
	LastSize  float64   `parquet:"last_size"`
	LastPrice float64   `parquet:"last_price"`
	Venue     string    `parquet:"venue,optional"`
}

// QuoteRow is the parquet schema of quote batches.
type QuoteRow struct {
	AssetType string    `parquet:"asset_type"`
	EventType string    `parquet:"event_type"`
	Symbol    string    `parquet:"symbol"`
	EventTime time.Time `parquet:"event_time"`
	CreatedAt time.Time `parquet:"created_at"`
	Vendor    string    `parquet:"vendor"`
	Source    string    `parquet:"source"`
	Bid       float64   `parquet:"bid"`
	Ask       float64   `parquet:"ask"`
	Mid       float64   `parquet:"mid"`
	BidSize   float64   `parquet:"bid_size"`
	AskSize   float64   `parquet:"ask_size"`
}

// RefPxRow is the parquet schema of reference price batches.
type RefPxRow struct {
	AssetType string    `parquet:"asset_type"`
	EventType string    `parquet:"event_type"`
	Symbol    string    `parquet:"symbol"`
	EventTime time.Time `parquet:"event_time"`
	CreatedAt time.Time `parquet:"created_at"`
	Vendor    string    `parquet:"vendor"`
	Source    string    `parquet:"source"`
	Price     float64   `parquet:"price"`
}

func newTradeRow(e *model.MarketEvent) TradeRow {
	return TradeRow{
		AssetType: e.AssetType.String(),
		EventType: e.EventType.String(),
		Symbol:    e.Symbol,
		EventTime: e.EventTime,
		CreatedAt: e.CreatedAt,
		Vendor:    e.Vendor,
		Source:    e.Source,
		LastSize:  e.LastSize.InexactFloat64(),
		LastPrice: e.LastPrice.InexactFloat64(),
		Venue:     e.Venue,
	}
}

func newQuoteRow(e *model.MarketEvent) QuoteRow {
	return QuoteRow{
		AssetType: e.AssetType.String(),
		EventType: e.EventType.String(),
		Symbol:    e.Symbol,
		EventTime: e.EventTime,
		CreatedAt: e.CreatedAt,
		Vendor:    e.Vendor,
		Source:    e.Source,
		Bid:       e.Bid.InexactFloat64(),
		Ask:       e.Ask.InexactFloat64(),
		Mid:       e.Mid.InexactFloat64(),
		BidSize:   e.BidSize.InexactFloat64(),
		AskSize:   e.AskSize.InexactFloat64(),
	}
}

func newRefPxRow(e *model.MarketEvent) RefPxRow {
	return RefPxRow{
		AssetType: e.AssetType.String(),
		EventType: e.EventType.String(),
		Symbol:    e.Symbol,
		EventTime: e.EventTime,
		CreatedAt: e.CreatedAt,
		Vendor:    e.Vendor,
		Source:    e.Source,
		Price:     e.Price.InexactFloat64(),
	}
}

// baseEvent rebuilds the common fields. Parquet stores instants in UTC, so
// times come back in the exchange zone the writer received them in.
func baseEvent(assetType, eventType, symbol string, eventTime, createdAt time.Time, vendor, source string) *model.MarketEvent {
	at, _ := enum.ParseAssetType(assetType)
	et, _ := enum.ParseEventType(eventType)
	return &model.MarketEvent{
		AssetType: at,
		EventType: et,
		Symbol:    symbol,
		EventTime: tz.Normalize(eventTime, nil),
		CreatedAt: tz.Normalize(createdAt, nil),
		Vendor:    vendor,
		Source:    source,
	}
}

func (r TradeRow) Event() *model.MarketEvent {
	e := baseEvent(r.AssetType, r.EventType, r.Symbol, r.EventTime, r.CreatedAt, r.Vendor, r.Source)
	e.LastSize = decimal.NewFromFloat(r.LastSize)
	e.LastPrice = decimal.NewFromFloat(r.LastPrice)
	e.Venue = r.Venue
	return e
}

func (r QuoteRow) Event() *model.MarketEvent {
	e := baseEvent(r.AssetType, r.EventType, r.Symbol, r.EventTime, r.CreatedAt, r.Vendor, r.Source)
	e.Bid = decimal.NewFromFloat(r.Bid)
	e.Ask = decimal.NewFromFloat(r.Ask)
	e.Mid = decimal.NewFromFloat(r.Mid)
	e.BidSize = decimal.NewFromFloat(r.BidSize)
	e.AskSize = decimal.NewFromFloat(r.AskSize)
	return e
}

func (r RefPxRow) Event() *model.MarketEvent {
	e := baseEvent(r.AssetType, r.EventType, r.Symbol, r.EventTime, r.CreatedAt, r.Vendor, r.Source)
	e.Price = decimal.NewFromFloat(r.Price)
	return e
}
