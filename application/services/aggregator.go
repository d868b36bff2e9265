package services

import (
	"context"

	"assessment-backend/domain/core/aggregates"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
)

// BlockAggregator computes a block aggregate from subcomponent history.
// It never writes; calling it twice without new events yields the same result.
type BlockAggregator struct {
	resolver *LatestScoreResolver
}

// NewBlockAggregator creates a new aggregator
func NewBlockAggregator(resolver *LatestScoreResolver) *BlockAggregator {
	return &BlockAggregator{resolver: resolver}
}

// Aggregate resolves the latest event of each canonical subcomponent of the
// block and averages the ones that exist.
func (a *BlockAggregator) Aggregate(ctx context.Context, blockID valueobjects.BlockID) (aggregates.AggregateResult, error) {
	subs := blockID.Subcomponents()
	latest := make([]*entities.ScoreEvent, len(subs))
	for i, sub := range subs {
		event, err := a.resolver.Latest(ctx, sub)
		if err != nil {
			return aggregates.AggregateResult{}, err
		}
		latest[i] = event
	}
	return aggregates.ComputeAggregate(blockID, latest), nil
}
