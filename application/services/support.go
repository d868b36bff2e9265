package services

import (
	"context"
	"fmt"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/config"
	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/domain/events"
	"assessment-backend/pkg/errors"

	"go.uber.org/zap"
)

// checkBlockInTaxonomy rejects blocks beyond the configured taxonomy
func checkBlockInTaxonomy(cfg *config.DomainConfig, blockID valueobjects.BlockID) error {
	if blockID.IsZero() {
		return errors.NewValidationError("block id is required")
	}
	if blockID.Number() > cfg.BlockCount {
		return errors.NewValidationError(fmt.Sprintf("block id must be between 1 and %d", cfg.BlockCount)).
			WithDetails(map[string]interface{}{"blockId": blockID.String()})
	}
	return nil
}

func trace(ctx context.Context, tracer ports.Tracer, name string, fn func(context.Context) error) error {
	if tracer == nil {
		return fn(ctx)
	}
	return tracer.TraceFunction(ctx, name, fn)
}

// publishBestEffort publishes events without failing the caller
func publishBestEffort(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, evts ...events.DomainEvent) {
	if publisher == nil || len(evts) == 0 {
		return
	}
	if err := publisher.PublishBatch(ctx, evts); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.Error(err),
			zap.Int("count", len(evts)),
			zap.String("eventType", evts[0].GetEventType()),
		)
	}
}

type noopMetrics struct{}

func (noopMetrics) AnalysisRecorded(string)                     {}
func (noopMetrics) ReconcileCompleted(bool, time.Duration)      {}
func (noopMetrics) HistoryAppended(string)                      {}
func (noopMetrics) HistoryGap(string)                           {}
func (noopMetrics) StoreOperation(string, time.Duration, error) {}

type noopLocker struct{}

func (noopLocker) LockBlock(context.Context, valueobjects.BlockID) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
