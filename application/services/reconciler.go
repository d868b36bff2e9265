package services

import (
	"context"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/config"
	"assessment-backend/domain/core/aggregates"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/domain/events"
	"assessment-backend/pkg/errors"

	"go.uber.org/zap"
)

// ReconcileResult describes one reconcile of a block aggregate
type ReconcileResult struct {
	BlockID         valueobjects.BlockID `json:"blockId"`
	Average         *int                 `json:"average"`
	ScoredCount     int                  `json:"scoredCount"`
	TotalCount      int                  `json:"totalCount"`
	PreviousAverage *int                 `json:"previousAverage"`
	Changed         bool                 `json:"changed"`
	HistoryRecorded bool                 `json:"historyRecorded"`
	SnapshotID      int64                `json:"snapshotId,omitempty"`

	// Warning is set when the cache was updated but the snapshot was not.
	Warning *errors.InconsistencyWarning `json:"-"`
}

// HistoryMissing reports a changed aggregate whose snapshot did not persist
func (r *ReconcileResult) HistoryMissing() bool {
	return r.Changed && !r.HistoryRecorded
}

// Reconciler keeps the aggregate cache and history trail in line with the
// score events of a block.
type Reconciler struct {
	aggregator *BlockAggregator
	cache      ports.AggregateCache
	history    ports.HistoryStore
	locker     ports.BlockLocker
	publisher  ports.EventPublisher
	metrics    ports.Metrics
	tracer     ports.Tracer
	domainCfg  *config.DomainConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewReconciler creates a new reconciler. locker, publisher, metrics and
// tracer are optional.
func NewReconciler(
	aggregator *BlockAggregator,
	cache ports.AggregateCache,
	history ports.HistoryStore,
	locker ports.BlockLocker,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	tracer ports.Tracer,
	domainCfg *config.DomainConfig,
	logger *zap.Logger,
) *Reconciler {
	if locker == nil {
		locker = noopLocker{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if domainCfg == nil {
		domainCfg = config.DefaultDomainConfig()
	}
	return &Reconciler{
		aggregator: aggregator,
		cache:      cache,
		history:    history,
		locker:     locker,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
		domainCfg:  domainCfg,
		logger:     orNop(logger),
		now:        time.Now,
	}
}

// Reconcile recomputes the block aggregate, replaces the cached row and
// appends a history snapshot when the average changed. trigger names the
// subcomponent whose analysis caused the reconcile, if any.
//
// Steps run strictly in order: aggregate, read previous, upsert, append.
// A failure before the append aborts the remaining steps and is returned
// unchanged. A failed append is reported through ReconcileResult.Warning;
// the upsert is not rolled back and the append is not retried.
func (r *Reconciler) Reconcile(ctx context.Context, blockID valueobjects.BlockID, trigger *valueobjects.SubcomponentID) (*ReconcileResult, error) {
	if err := checkBlockInTaxonomy(r.domainCfg, blockID); err != nil {
		return nil, err
	}
	if trigger != nil && trigger.Block() != blockID {
		return nil, errors.NewValidationError("trigger subcomponent does not belong to block").
			WithDetails(map[string]interface{}{"blockId": blockID.String(), "trigger": trigger.String()})
	}

	start := r.now()
	release, err := r.locker.LockBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("Failed to release block lock", zap.String("blockID", blockID.String()), zap.Error(err))
		}
	}()

	var result *ReconcileResult
	err = trace(ctx, r.tracer, "reconcile_block", func(ctx context.Context) error {
		var stepErr error
		result, stepErr = r.reconcile(ctx, blockID, trigger)
		return stepErr
	})
	if err != nil {
		return nil, err
	}

	r.metrics.ReconcileCompleted(result.Changed, r.now().Sub(start))
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, blockID valueobjects.BlockID, trigger *valueobjects.SubcomponentID) (*ReconcileResult, error) {
	aggregate, err := r.aggregator.Aggregate(ctx, blockID)
	if err != nil {
		return nil, err
	}

	previous, err := r.cache.Read(ctx, blockID)
	if err != nil {
		return nil, err
	}
	var previousAverage *int
	if previous != nil {
		previousAverage = previous.AverageScore
	}

	if err := r.cache.Upsert(ctx, blockID, aggregate.Average, aggregate.ScoredCount); err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		BlockID:         blockID,
		Average:         aggregate.Average,
		ScoredCount:     aggregate.ScoredCount,
		TotalCount:      aggregate.TotalCount,
		PreviousAverage: previousAverage,
	}

	if !aggregates.Changed(aggregate.Average, previousAverage) {
		r.logger.Debug("Block score unchanged",
			zap.String("blockID", blockID.String()),
			zap.String("average", valueobjects.FormatScore(aggregate.Average)),
		)
		return result, nil
	}
	result.Changed = true

	snapshot := entities.NewBlockHistorySnapshot(blockID, aggregate.Average, aggregate.ScoredCount, previousAverage, trigger, r.now())
	saved, err := r.history.Append(ctx, snapshot)
	if err != nil {
		result.Warning = errors.NewInconsistencyWarning(blockID.String(), aggregate.Average, previousAverage, err)
		r.logger.Error("history append failed after cache upsert",
			zap.String("blockID", blockID.String()),
			zap.String("average", valueobjects.FormatScore(aggregate.Average)),
			zap.String("previousAverage", valueobjects.FormatScore(previousAverage)),
			zap.String("trigger", triggerString(trigger)),
			zap.Error(err),
		)
		r.metrics.HistoryGap(blockID.String())
		publishBestEffort(ctx, r.publisher, r.logger,
			events.NewHistoryGapDetected(blockID, aggregate.Average, err.Error(), r.now()),
			events.NewBlockScoreChanged(blockID, previousAverage, aggregate.Average, aggregate.ScoredCount, trigger, false, r.now()),
		)
		return result, nil
	}

	result.HistoryRecorded = true
	result.SnapshotID = saved.ID
	r.metrics.HistoryAppended(blockID.String())

	r.logger.Info("Block score changed",
		zap.String("blockID", blockID.String()),
		zap.String("previousAverage", valueobjects.FormatScore(previousAverage)),
		zap.String("average", valueobjects.FormatScore(aggregate.Average)),
		zap.Int("scoredCount", aggregate.ScoredCount),
		zap.String("trigger", triggerString(trigger)),
	)
	publishBestEffort(ctx, r.publisher, r.logger,
		events.NewBlockScoreChanged(blockID, previousAverage, aggregate.Average, aggregate.ScoredCount, trigger, true, r.now()),
	)
	return result, nil
}

func triggerString(trigger *valueobjects.SubcomponentID) string {
	if trigger == nil {
		return ""
	}
	return trigger.String()
}
