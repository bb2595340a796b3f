package consolidator

import (
	"time"

	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	DefaultFlushThreshold  = 30
	defaultFlushQueue      = 4
	defaultShutdownTimeout = 10 * time.Second
)

// Config controls one consolidator worker.
type Config struct {
	EventType enum.EventType
	// FlushThreshold is the buffered key count that triggers a flush.
	FlushThreshold int
	// AsyncFlush hands drained batches to a dedicated flusher so receiving never waits on disk.
	AsyncFlush bool
	// FlushQueue bounds the batches waiting for the async flusher.
	FlushQueue int
	// ShutdownTimeout bounds the final drain and flush after cancellation.
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FlushThreshold == 0 {
		c.FlushThreshold = DefaultFlushThreshold
	}
	if c.FlushQueue == 0 {
		c.FlushQueue = defaultFlushQueue
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if !c.EventType.IsAvailable() {
		return errors.Wrapf(exception.ErrInvalidConfig, "consolidator: event type %d", c.EventType)
	}
	if c.FlushThreshold <= 0 {
		return errors.Wrapf(exception.ErrInvalidConfig, "consolidator: FlushThreshold must be > 0, got %d", c.FlushThreshold)
	}
	if c.AsyncFlush && c.FlushQueue <= 0 {
		return errors.Wrapf(exception.ErrInvalidConfig, "consolidator: FlushQueue must be > 0, got %d", c.FlushQueue)
	}
	if c.ShutdownTimeout < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "consolidator: ShutdownTimeout must be >= 0")
	}
	return nil
}
