package catalog

import (
	"context"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
)

// Catalog records flushed batch files in a database.
type Catalog struct {
	db *gorm.DB
}

// New migrates the catalog table and returns a Catalog backed by db.
func New(db *gorm.DB) (*Catalog, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "catalog: db")
	}
	if err := db.AutoMigrate(&BatchRecord{}); err != nil {
		return nil, errors.Wrap(err, "catalog: migrate")
	}
	return &Catalog{db: db}, nil
}

// Insert stores one row for info and returns it.
func (c *Catalog) Insert(ctx context.Context, info model.BatchInfo) (BatchRecord, error) {
	rec := newBatchRecord(uuid.NewString(), info)
	if err := c.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return BatchRecord{}, errors.Wrapf(exception.ErrStorageCatalog, "path: %s, err: %+v", info.Path, err)
	}
	return rec, nil
}

// List returns the most recent rows first. A zero eventType lists every type, a
// non-positive limit lists everything.
func (c *Catalog) List(ctx context.Context, eventType enum.EventType, limit int) ([]BatchRecord, error) {
	q := c.db.WithContext(ctx).Order("flushed_at DESC")
	if eventType.IsAvailable() {
		q = q.Where("event_type = ?", eventType.String())
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []BatchRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "catalog: list")
	}
	return out, nil
}
