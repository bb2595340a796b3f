package recorder

import (
	"context"
	"time"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"

	"github.com/yanun0323/errors"
)

// PlaybackConfig controls batch read-back.
type PlaybackConfig struct {
	Dir        string
	FilePrefix string
	// EventType limits playback to one event type. Zero replays every batch.
	EventType enum.EventType
	// Location is the zone event times are expressed in. Defaults to the exchange zone.
	Location *time.Location
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	if c.Dir == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "playback: Dir is empty")
	}
	if c.EventType != 0 && !c.EventType.IsAvailable() {
		return errors.Wrapf(exception.ErrBusUnknownEventType, "playback: event type %d", c.EventType)
	}
	return nil
}

// Playback replays written batches in flush order.
type Playback struct {
	cfg PlaybackConfig
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg}, nil
}

// Run reads every matching batch and calls handler once per file. A handler
// error stops playback and is returned.
func (p *Playback) Run(ctx context.Context, handler func(path string, eventType enum.EventType, events []*model.MarketEvent) error) error {
	if handler == nil {
		return errors.Wrap(exception.ErrNilInstance, "playback: handler")
	}
	paths, err := ListBatches(p.cfg.Dir, p.cfg.FilePrefix, p.cfg.EventType)
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, _ := EventTypeOf(p.cfg.FilePrefix, path)
		events, err := ReadBatch(path, t)
		if err != nil {
			return err
		}
		if p.cfg.Location != nil {
			for _, e := range events {
				e.EventTime = e.EventTime.In(p.cfg.Location)
				e.CreatedAt = e.CreatedAt.In(p.cfg.Location)
			}
		}
		if err := handler(path, t, events); err != nil {
			return err
		}
	}
	return nil
}
