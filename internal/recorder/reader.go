package recorder

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"

	"github.com/parquet-go/parquet-go"
	"github.com/yanun0323/errors"
)

// EventTypeOf extracts the event type from a batch file name written with prefix.
func EventTypeOf(prefix, path string) (enum.EventType, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, prefix+"_") || !strings.HasSuffix(name, fileExt) {
		return 0, false
	}
	rest := strings.TrimPrefix(name, prefix+"_")
	for _, t := range enum.EventTypes() {
		if strings.HasPrefix(rest, t.String()+"_") {
			return t, true
		}
	}
	return 0, false
}

// ReadBatch loads every record of a batch file back into events, with times in the exchange zone.
func ReadBatch(path string, eventType enum.EventType) ([]*model.MarketEvent, error) {
	switch eventType {
	case enum.EventTypeTrade:
		return readRows(path, TradeRow.Event)
	case enum.EventTypeQuote:
		return readRows(path, QuoteRow.Event)
	case enum.EventTypeRefPx:
		return readRows(path, RefPxRow.Event)
	default:
		return nil, errors.Wrapf(exception.ErrBusUnknownEventType, "event type %d", eventType)
	}
}

func readRows[T any](path string, conv func(T) *model.MarketEvent) ([]*model.MarketEvent, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	events := make([]*model.MarketEvent, len(rows))
	for i, r := range rows {
		events[i] = conv(r)
	}
	return events, nil
}

// ListBatches returns the batch files of eventType in dir ordered by name, which is flush order.
// A zero eventType lists every batch.
func ListBatches(dir, prefix string, eventType enum.EventType) ([]string, error) {
	if prefix == "" {
		prefix = defaultFilePrefix
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		t, ok := EventTypeOf(prefix, entry.Name())
		if !ok {
			continue
		}
		if eventType.IsAvailable() && t != eventType {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
