package ingest

import (
	"fmt"
	"strings"
	"time"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/internal/tz"
	"mdingest/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

const (
	DefaultVendor = "tiingo"

	cryptoTradeKind = "T"
)

// DecodeError tags a frame that could not be normalized with its feed and raw payload.
type DecodeError struct {
	Feed    enum.Feed
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s frame %s: %v", e.Feed, e.Payload, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type NormalizerOption struct {
	// Vendor tags every event and prefixes its source. Defaults to tiingo.
	Vendor string
	// Location is the exchange zone events are expressed in. Defaults to America/New_York.
	Location *time.Location
	// ETFs are the equity tickers classified as etf rather than stock.
	ETFs []string
	Now  func() time.Time
}

// Normalizer maps positional vendor frames to canonical events. It holds no mutable state.
type Normalizer struct {
	vendor string
	loc    *time.Location
	etfs   map[string]struct{}
	now    func() time.Time
}

func NewNormalizer(opt NormalizerOption) *Normalizer {
	n := &Normalizer{
		vendor: opt.Vendor,
		loc:    opt.Location,
		etfs:   make(map[string]struct{}, len(opt.ETFs)),
		now:    opt.Now,
	}
	if n.vendor == "" {
		n.vendor = DefaultVendor
	}
	if n.loc == nil {
		n.loc = tz.Exchange()
	}
	if n.now == nil {
		n.now = time.Now
	}
	for _, s := range opt.ETFs {
		n.etfs[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return n
}

// Source returns the provenance tag of feed, e.g. tiingo_iex.
func (n *Normalizer) Source(feed enum.Feed) string {
	return n.vendor + "_" + feed.String()
}

// Normalize decodes one frame of feed. Failures are returned as *DecodeError.
func (n *Normalizer) Normalize(feed enum.Feed, frame Frame) (*model.MarketEvent, error) {
	var (
		ev  *model.MarketEvent
		err error
	)
	switch feed {
	case enum.FeedIEX:
		ev, err = n.refPx(frame)
	case enum.FeedFX:
		ev, err = n.quote(enum.FeedFX, enum.AssetTypeFX, frame)
	case enum.FeedCrypto:
		if frame.Kind() == cryptoTradeKind {
			ev, err = n.cryptoTrade(frame)
		} else {
			ev, err = n.quote(enum.FeedCrypto, enum.AssetTypeCrypto, frame)
		}
	default:
		err = errors.Wrapf(exception.ErrFeedUnknownAsset, "feed %d", feed)
	}
	if err != nil {
		return nil, &DecodeError{Feed: feed, Payload: frame.raw(), Err: err}
	}
	return ev, nil
}

func (n *Normalizer) event(feed enum.Feed, asset enum.AssetType, eventType enum.EventType, symbol string, eventTime time.Time) *model.MarketEvent {
	return &model.MarketEvent{
		AssetType: asset,
		EventType: eventType,
		Symbol:    strings.ToLower(symbol),
		EventTime: tz.Normalize(eventTime, n.loc),
		CreatedAt: tz.Normalize(n.now(), n.loc),
		Vendor:    n.vendor,
		Source:    n.Source(feed),
	}
}

// (iso_ts, symbol, price)
func (n *Normalizer) refPx(frame Frame) (*model.MarketEvent, error) {
	if err := frame.expect(3); err != nil {
		return nil, err
	}
	ts, err := frame.Time(0)
	if err != nil {
		return nil, err
	}
	symbol, err := frame.Text(1)
	if err != nil {
		return nil, err
	}
	price, err := frame.Decimal(2)
	if err != nil {
		return nil, err
	}

	asset := enum.AssetTypeStock
	if _, ok := n.etfs[strings.ToLower(symbol)]; ok {
		asset = enum.AssetTypeETF
	}
	ev := n.event(enum.FeedIEX, asset, enum.EventTypeRefPx, symbol, ts)
	ev.Price = price
	return ev, nil
}

type decimalField struct {
	index int
	value *decimal.Decimal
}

// (kind, symbol, iso_ts, bid_size, bid, mid, ask_size, ask)
func (n *Normalizer) quote(feed enum.Feed, asset enum.AssetType, frame Frame) (*model.MarketEvent, error) {
	if err := frame.expect(8); err != nil {
		return nil, err
	}
	symbol, err := frame.Text(1)
	if err != nil {
		return nil, err
	}
	ts, err := frame.Time(2)
	if err != nil {
		return nil, err
	}

	ev := n.event(feed, asset, enum.EventTypeQuote, symbol, ts)
	for _, f := range []decimalField{
		{3, &ev.BidSize},
		{4, &ev.Bid},
		{5, &ev.Mid},
		{6, &ev.AskSize},
		{7, &ev.Ask},
	} {
		v, err := frame.Decimal(f.index)
		if err != nil {
			return nil, err
		}
		*f.value = v
	}
	return ev, nil
}

// (kind, symbol, iso_ts, venue, last_size, last_price)
func (n *Normalizer) cryptoTrade(frame Frame) (*model.MarketEvent, error) {
	if err := frame.expect(6); err != nil {
		return nil, err
	}
	symbol, err := frame.Text(1)
	if err != nil {
		return nil, err
	}
	ts, err := frame.Time(2)
	if err != nil {
		return nil, err
	}
	venue, err := frame.Text(3)
	if err != nil {
		return nil, err
	}
	size, err := frame.Decimal(4)
	if err != nil {
		return nil, err
	}
	price, err := frame.Decimal(5)
	if err != nil {
		return nil, err
	}

	ev := n.event(enum.FeedCrypto, enum.AssetTypeCrypto, enum.EventTypeTrade, symbol, ts)
	ev.Venue = venue
	ev.LastSize = size
	ev.LastPrice = price
	return ev, nil
}
