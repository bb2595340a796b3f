package catalog

import (
	"time"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
)

// BatchRecord is one row of the batch catalog.
type BatchRecord struct {
	ID             string    `gorm:"primaryKey;size:36"`
	EventType      string    `gorm:"size:16;not null;index:idx_batch_event_flushed,priority:1"`
	Path           string    `gorm:"not null;uniqueIndex"`
	Records        int       `gorm:"not null"`
	FirstEventTime time.Time `gorm:"not null"`
	LastEventTime  time.Time `gorm:"not null"`
	FlushedAt      time.Time `gorm:"not null;index:idx_batch_event_flushed,priority:2"`
}

func (BatchRecord) TableName() string {
	return "batch_catalog"
}

func newBatchRecord(id string, info model.BatchInfo) BatchRecord {
	return BatchRecord{
		ID:             id,
		EventType:      info.EventType.String(),
		Path:           info.Path,
		Records:        info.Records,
		FirstEventTime: info.FirstEventTime.UTC(),
		LastEventTime:  info.LastEventTime.UTC(),
		FlushedAt:      info.FlushedAt.UTC(),
	}
}

// Info converts the row back, with times in loc.
func (r BatchRecord) Info(loc *time.Location) model.BatchInfo {
	if loc == nil {
		loc = time.UTC
	}
	eventType, _ := enum.ParseEventType(r.EventType)
	return model.BatchInfo{
		EventType:      eventType,
		Path:           r.Path,
		Records:        r.Records,
		FirstEventTime: r.FirstEventTime.In(loc),
		LastEventTime:  r.LastEventTime.In(loc),
		FlushedAt:      r.FlushedAt.In(loc),
	}
}
