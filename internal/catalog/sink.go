package catalog

import (
	"context"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// BatchWriter writes one batch file. *recorder.Writer implements it.
type BatchWriter interface {
	Write(ctx context.Context, eventType enum.EventType, events []*model.MarketEvent) (model.BatchInfo, error)
}

// Sink writes the batch file first and then records it in the catalog.
// The file is durable once written, so a catalog failure is logged and the
// flush still succeeds.
type Sink struct {
	writer  BatchWriter
	catalog *Catalog
}

func NewSink(writer BatchWriter, catalog *Catalog) (*Sink, error) {
	if writer == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "catalog: writer")
	}
	if catalog == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "catalog: catalog")
	}
	return &Sink{writer: writer, catalog: catalog}, nil
}

func (s *Sink) Write(ctx context.Context, eventType enum.EventType, events []*model.MarketEvent) (model.BatchInfo, error) {
	info, err := s.writer.Write(ctx, eventType, events)
	if err != nil {
		return info, err
	}

	if _, err := s.catalog.Insert(context.WithoutCancel(ctx), info); err != nil {
		logs.Errorf("catalog: batch %s written but not recorded, err: %+v", info.Path, err)
	}
	return info, nil
}
