package ops

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"

	"github.com/yanun0323/errors"
)

// TickerSet lists the symbols to subscribe per asset class.
type TickerSet struct {
	Stock  []string `mapstructure:"stock"`
	ETF    []string `mapstructure:"etf"`
	FX     []string `mapstructure:"fx"`
	Crypto []string `mapstructure:"crypto"`
}

// Merge returns the union of s and other, lower-cased, without duplicates,
// in first-seen order.
func (s TickerSet) Merge(other TickerSet) TickerSet {
	return TickerSet{
		Stock:  mergeSymbols(s.Stock, other.Stock),
		ETF:    mergeSymbols(s.ETF, other.ETF),
		FX:     mergeSymbols(s.FX, other.FX),
		Crypto: mergeSymbols(s.Crypto, other.Crypto),
	}
}

// ForFeed returns the tickers subscribed on feed. The iex feed carries both
// stocks and etfs.
func (s TickerSet) ForFeed(feed enum.Feed) []string {
	switch feed {
	case enum.FeedIEX:
		return mergeSymbols(s.Stock, s.ETF)
	case enum.FeedFX:
		return s.FX
	case enum.FeedCrypto:
		return s.Crypto
	default:
		return nil
	}
}

func (s *TickerSet) add(asset enum.AssetType, symbol string) {
	switch asset {
	case enum.AssetTypeStock:
		s.Stock = append(s.Stock, symbol)
	case enum.AssetTypeETF:
		s.ETF = append(s.ETF, symbol)
	case enum.AssetTypeFX:
		s.FX = append(s.FX, symbol)
	case enum.AssetTypeCrypto:
		s.Crypto = append(s.Crypto, symbol)
	}
}

func mergeSymbols(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, s := range list {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// LoadTickersFile reads a ticker CSV file, see ReadTickers.
func LoadTickersFile(path string) (TickerSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return TickerSet{}, errors.Wrapf(exception.ErrInvalidConfig, "open tickers file %s, err: %+v", path, err)
	}
	defer f.Close()

	set, err := ReadTickers(f)
	if err != nil {
		return TickerSet{}, errors.Wrapf(err, "tickers file %s", path)
	}
	return set, nil
}

// ReadTickers parses "symbol,asset_type" rows where asset_type is one of STK,
// ETF, FX or CRYPTO. A leading header row is skipped.
func ReadTickers(r io.Reader) (TickerSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var set TickerSet
	for n := 1; ; n++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TickerSet{}, errors.Wrapf(exception.ErrInvalidConfig, "record %d, err: %+v", n, err)
		}
		if len(record) < 2 {
			return TickerSet{}, errors.Wrapf(exception.ErrInvalidConfig, "record %d: expected symbol,asset_type", n)
		}

		symbol, kind := strings.TrimSpace(record[0]), strings.TrimSpace(record[1])
		if n == 1 && strings.EqualFold(symbol, "symbol") {
			continue
		}
		asset, ok := enum.ParseAssetType(kind)
		if !ok {
			return TickerSet{}, errors.Wrapf(exception.ErrInvalidConfig, "record %d: unknown asset type %q", n, kind)
		}
		set.add(asset, symbol)
	}
	return set.Merge(TickerSet{}), nil
}
