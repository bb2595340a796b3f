package exception

import "errors"

// Feed errors
var (
	ErrFeedMalformedPayload = errors.New("feed: malformed payload")
	ErrFeedPayloadArity     = errors.New("feed: unexpected payload arity")
	ErrFeedEmptyTickers     = errors.New("feed: no tickers to subscribe")
	ErrFeedUnauthorized     = errors.New("feed: vendor rejected authorization")
	ErrFeedUnknownAsset     = errors.New("feed: unknown asset class")
	ErrFeedNilPublisher     = errors.New("feed: nil publisher")
)

// Bus errors
var (
	ErrBusUnknownEventType = errors.New("bus: unknown event type")
	ErrBusNilEvent         = errors.New("bus: nil event")
)
