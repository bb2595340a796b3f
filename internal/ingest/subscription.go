package ingest

import (
	"strings"

	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const (
	DefaultIEXURL    = "wss://api.tiingo.com/iex"
	DefaultFXURL     = "wss://api.tiingo.com/fx"
	DefaultCryptoURL = "wss://api.tiingo.com/crypto"
)

// DefaultThresholdLevel returns the vendor update granularity used when none is configured.
func DefaultThresholdLevel(feed enum.Feed) int {
	switch feed {
	case enum.FeedIEX:
		return 6
	default:
		return 5
	}
}

// DefaultURL returns the vendor endpoint of feed.
func DefaultURL(feed enum.Feed) string {
	switch feed {
	case enum.FeedIEX:
		return DefaultIEXURL
	case enum.FeedFX:
		return DefaultFXURL
	case enum.FeedCrypto:
		return DefaultCryptoURL
	default:
		return ""
	}
}

type SubscribeRequest struct {
	EventName     string             `json:"eventName"`
	Authorization string             `json:"authorization"`
	EventData     SubscribeEventData `json:"eventData"`
}

type SubscribeEventData struct {
	ThresholdLevel int      `json:"thresholdLevel"`
	Tickers        []string `json:"tickers"`
}

// NewSubscribeRequest builds the subscribe payload. Tickers are lower-cased and
// deduplicated; the threshold level is passed through unmodified.
func NewSubscribeRequest(apiKey string, thresholdLevel int, tickers []string) (SubscribeRequest, error) {
	seen := make(map[string]struct{}, len(tickers))
	lowered := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		lowered = append(lowered, t)
	}
	if len(lowered) == 0 {
		return SubscribeRequest{}, exception.ErrFeedEmptyTickers
	}

	return SubscribeRequest{
		EventName:     "subscribe",
		Authorization: apiKey,
		EventData: SubscribeEventData{
			ThresholdLevel: thresholdLevel,
			Tickers:        lowered,
		},
	}, nil
}

func (r SubscribeRequest) Marshal() ([]byte, error) {
	buf, err := sonic.ConfigFastest.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshal subscribe request")
	}
	return buf, nil
}

// Redacted returns a copy safe for logging.
func (r SubscribeRequest) Redacted() SubscribeRequest {
	if r.Authorization != "" {
		r.Authorization = "***"
	}
	return r
}
