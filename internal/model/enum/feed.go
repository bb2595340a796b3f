package enum

import "strings"

// Feed is one vendor websocket endpoint: iex, fx, crypto
type Feed uint8

const (
	_feed_beg Feed = iota
	FeedIEX
	FeedFX
	FeedCrypto
	_feed_end
)

var feedNames = [...]string{
	FeedIEX:    "iex",
	FeedFX:     "fx",
	FeedCrypto: "crypto",
}

func (f Feed) IsAvailable() bool {
	return f > _feed_beg && f < _feed_end
}

func (f Feed) String() string {
	if !f.IsAvailable() {
		return "unknown"
	}
	return feedNames[f]
}

// Feeds lists every available feed in declaration order.
func Feeds() []Feed {
	feeds := make([]Feed, 0, int(_feed_end)-1)
	for f := _feed_beg + 1; f < _feed_end; f++ {
		feeds = append(feeds, f)
	}
	return feeds
}

func ParseFeed(s string) (Feed, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iex":
		return FeedIEX, true
	case "fx":
		return FeedFX, true
	case "crypto":
		return FeedCrypto, true
	default:
		return 0, false
	}
}
