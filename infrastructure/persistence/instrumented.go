// Package persistence holds store decorators shared by every backend.
package persistence

import (
	"context"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/core/aggregates"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"

	"go.uber.org/zap"
)

// InstrumentedStore times every store call and logs failures
type InstrumentedStore struct {
	next    ports.Store
	metrics ports.Metrics
	logger  *zap.Logger
}

var _ ports.Store = (*InstrumentedStore)(nil)

// Instrument wraps a store with metrics and failure logging
func Instrument(next ports.Store, metrics ports.Metrics, logger *zap.Logger) *InstrumentedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedStore{next: next, metrics: metrics, logger: logger}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	d := time.Since(start)
	if s.metrics != nil {
		s.metrics.StoreOperation(op, d, err)
	}
	if err != nil {
		s.logger.Warn("Store operation failed",
			zap.String("operation", op),
			zap.Duration("duration", d),
			zap.Error(err),
		)
	}
}

func (s *InstrumentedStore) Record(ctx context.Context, event *entities.ScoreEvent) (saved *entities.ScoreEvent, err error) {
	defer func(start time.Time) { s.observe("record_event", start, err) }(time.Now())
	return s.next.Record(ctx, event)
}

func (s *InstrumentedStore) Latest(ctx context.Context, id valueobjects.SubcomponentID) (event *entities.ScoreEvent, err error) {
	defer func(start time.Time) { s.observe("latest_event", start, err) }(time.Now())
	return s.next.Latest(ctx, id)
}

func (s *InstrumentedStore) ListBySubcomponent(ctx context.Context, id valueobjects.SubcomponentID, since time.Time) (events []*entities.ScoreEvent, err error) {
	defer func(start time.Time) { s.observe("list_events", start, err) }(time.Now())
	return s.next.ListBySubcomponent(ctx, id, since)
}

func (s *InstrumentedStore) LatestBefore(ctx context.Context, ref *entities.ScoreEvent) (event *entities.ScoreEvent, err error) {
	defer func(start time.Time) { s.observe("previous_event", start, err) }(time.Now())
	return s.next.LatestBefore(ctx, ref)
}

func (s *InstrumentedStore) Upsert(ctx context.Context, blockID valueobjects.BlockID, average *int, scoredCount int) (err error) {
	defer func(start time.Time) { s.observe("upsert_cache", start, err) }(time.Now())
	return s.next.Upsert(ctx, blockID, average, scoredCount)
}

func (s *InstrumentedStore) Read(ctx context.Context, blockID valueobjects.BlockID) (row *aggregates.BlockAggregate, err error) {
	defer func(start time.Time) { s.observe("read_cache", start, err) }(time.Now())
	return s.next.Read(ctx, blockID)
}

func (s *InstrumentedStore) List(ctx context.Context) (rows []aggregates.BlockAggregate, err error) {
	defer func(start time.Time) { s.observe("list_cache", start, err) }(time.Now())
	return s.next.List(ctx)
}

func (s *InstrumentedStore) Append(ctx context.Context, snapshot *entities.BlockHistorySnapshot) (saved *entities.BlockHistorySnapshot, err error) {
	defer func(start time.Time) { s.observe("append_history", start, err) }(time.Now())
	return s.next.Append(ctx, snapshot)
}

func (s *InstrumentedStore) ListSince(ctx context.Context, blockID valueobjects.BlockID, since time.Time) (snaps []*entities.BlockHistorySnapshot, err error) {
	defer func(start time.Time) { s.observe("list_history", start, err) }(time.Now())
	return s.next.ListSince(ctx, blockID, since)
}

func (s *InstrumentedStore) PreviousBefore(ctx context.Context, blockID valueobjects.BlockID, id int64) (snap *entities.BlockHistorySnapshot, err error) {
	defer func(start time.Time) { s.observe("previous_history", start, err) }(time.Now())
	return s.next.PreviousBefore(ctx, blockID, id)
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
