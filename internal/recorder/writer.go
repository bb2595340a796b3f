package recorder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/internal/tz"
	"mdingest/pkg/exception"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/yanun0323/errors"
)

// Writer turns one batch of events into one immutable parquet file.
// Files are written under a temporary name and linked into place once complete.
type Writer struct {
	cfg   Config
	codec compress.Codec
	loc   *time.Location
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewWriter creates a batch writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := codecOf(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(exception.ErrStorageUnwritable, "create dir %s, err: %v", cfg.Dir, err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = tz.Exchange()
	}
	return &Writer{
		cfg:   cfg,
		codec: codec,
		loc:   loc,
		now:   time.Now,
	}, nil
}

func (w *Writer) Dir() string {
	return w.cfg.Dir
}

// Write stores events as one file. Nil entries are skipped; an empty batch is rejected.
func (w *Writer) Write(ctx context.Context, eventType enum.EventType, events []*model.MarketEvent) (model.BatchInfo, error) {
	if err := ctx.Err(); err != nil {
		return model.BatchInfo{}, err
	}
	if !eventType.IsAvailable() {
		return model.BatchInfo{}, errors.Wrapf(exception.ErrBusUnknownEventType, "event type %d", eventType)
	}

	live := make([]*model.MarketEvent, 0, len(events))
	for _, e := range events {
		if e != nil {
			live = append(live, e)
		}
	}
	if len(live) == 0 {
		return model.BatchInfo{}, exception.ErrStorageEmptyBatch
	}

	flushedAt := w.flushTime()
	path, err := w.writeFile(eventType, flushedAt, live)
	if err != nil {
		return model.BatchInfo{}, err
	}

	first, last := model.EventTimeRange(live)
	return model.BatchInfo{
		EventType:      eventType,
		Path:           path,
		Records:        len(live),
		FirstEventTime: first,
		LastEventTime:  last,
		FlushedAt:      flushedAt,
	}, nil
}

// flushTime is strictly increasing at microsecond precision so file names never repeat within a process.
func (w *Writer) flushTime() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	t := w.now().In(w.loc).Truncate(time.Microsecond)
	if !t.After(w.last) {
		t = w.last.Add(time.Microsecond)
	}
	w.last = t
	return t
}

// FileName returns the batch file name of eventType flushed at t.
func FileName(prefix string, eventType enum.EventType, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%06d%s", prefix, eventType, t.Format(fileTimeLayout), t.Nanosecond()/int(time.Microsecond), fileExt)
}

func (w *Writer) writeFile(eventType enum.EventType, flushedAt time.Time, events []*model.MarketEvent) (string, error) {
	tmp, err := os.CreateTemp(w.cfg.Dir, ".batch-*.tmp")
	if err != nil {
		return "", classify(errors.Wrap(exception.ErrStorageFlush, "create temp file"), err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := w.encode(tmp, eventType, events); err != nil {
		_ = tmp.Close()
		return "", classify(errors.Wrapf(exception.ErrStorageFlush, "encode %s batch, err: %v", eventType, err), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", classify(errors.Wrapf(exception.ErrStorageFlush, "sync, err: %v", err), err)
	}
	if err := tmp.Close(); err != nil {
		return "", classify(errors.Wrapf(exception.ErrStorageFlush, "close, err: %v", err), err)
	}

	base := FileName(w.cfg.FilePrefix, eventType, flushedAt)
	for seq := 0; ; seq++ {
		name := base
		if seq > 0 {
			name = fmt.Sprintf("%s_%d%s", base[:len(base)-len(fileExt)], seq, fileExt)
		}
		path := filepath.Join(w.cfg.Dir, name)
		if err := os.Link(tmpName, path); err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", classify(errors.Wrapf(exception.ErrStorageFlush, "publish %s, err: %v", name, err), err)
		}
		return path, nil
	}
}

func (w *Writer) encode(out io.Writer, eventType enum.EventType, events []*model.MarketEvent) error {
	switch eventType {
	case enum.EventTypeTrade:
		return writeRows(out, w.codec, events, newTradeRow)
	case enum.EventTypeQuote:
		return writeRows(out, w.codec, events, newQuoteRow)
	case enum.EventTypeRefPx:
		return writeRows(out, w.codec, events, newRefPxRow)
	default:
		return errors.Wrapf(exception.ErrBusUnknownEventType, "event type %d", eventType)
	}
}

func writeRows[T any](out io.Writer, codec compress.Codec, events []*model.MarketEvent, conv func(*model.MarketEvent) T) error {
	rows := make([]T, len(events))
	for i, e := range events {
		rows[i] = conv(e)
	}

	pw := parquet.NewGenericWriter[T](out, parquet.Compression(codec))
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return err
	}
	return pw.Close()
}

// classify marks errors caused by the output location itself as unwritable, which is fatal.
func classify(wrapped, cause error) error {
	if exception.IsUnwritable(cause) {
		return errors.Wrapf(exception.ErrStorageUnwritable, "%v", wrapped)
	}
	return wrapped
}
