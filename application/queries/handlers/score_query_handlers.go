// Package handlers adapts the scoring read side to the query bus.
package handlers

import (
	"context"
	"fmt"

	"assessment-backend/application/ports"
	"assessment-backend/application/queries"
	"assessment-backend/application/queries/bus"
	"assessment-backend/application/services"
	"assessment-backend/domain/config"
	"assessment-backend/pkg/errors"
)

// ScoreQueryHandlers serves the scoring queries
type ScoreQueryHandlers struct {
	cache      ports.AggregateCache
	resolver   *services.LatestScoreResolver
	aggregator *services.BlockAggregator
	changelog  *services.ChangeLogReader
	domainCfg  *config.DomainConfig
	coalescer  *bus.CoalescingMiddleware
}

// NewScoreQueryHandlers creates the scoring query handlers
func NewScoreQueryHandlers(
	cache ports.AggregateCache,
	resolver *services.LatestScoreResolver,
	aggregator *services.BlockAggregator,
	changelog *services.ChangeLogReader,
	domainCfg *config.DomainConfig,
) *ScoreQueryHandlers {
	return &ScoreQueryHandlers{
		cache:      cache,
		resolver:   resolver,
		aggregator: aggregator,
		changelog:  changelog,
		domainCfg:  domainCfg,
		coalescer:  bus.NewCoalescingMiddleware(),
	}
}

// Register adds every scoring query to the bus
func (h *ScoreQueryHandlers) Register(b *bus.QueryBus) error {
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{queries.GetBlockCacheQuery{}, bus.QueryHandlerFunc(h.handleGetBlockCache)},
		{queries.ListBlockCachesQuery{}, bus.QueryHandlerFunc(h.handleListBlockCaches)},
		{queries.GetBlockAggregateQuery{}, h.coalescer.Wrap(bus.QueryHandlerFunc(h.handleGetBlockAggregate))},
		{queries.GetBlockChangesQuery{}, bus.QueryHandlerFunc(h.handleGetBlockChanges)},
		{queries.GetLatestScoreQuery{}, bus.QueryHandlerFunc(h.handleGetLatestScore)},
		{queries.GetSubcomponentChangesQuery{}, bus.QueryHandlerFunc(h.handleGetSubcomponentChanges)},
	}
	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *ScoreQueryHandlers) handleGetBlockCache(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetBlockCacheQuery)
	if !ok {
		return nil, fmt.Errorf("invalid query type: %T", query)
	}
	if q.BlockID.Number() > h.domainCfg.BlockCount {
		return nil, errors.NewValidationError(fmt.Sprintf("block id must be between 1 and %d", h.domainCfg.BlockCount))
	}
	row, err := h.cache.Read(ctx, q.BlockID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NewNotFoundError("block aggregate " + q.BlockID.String())
	}
	return row, nil
}

func (h *ScoreQueryHandlers) handleListBlockCaches(ctx context.Context, query bus.Query) (interface{}, error) {
	return h.cache.List(ctx)
}

func (h *ScoreQueryHandlers) handleGetBlockAggregate(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetBlockAggregateQuery)
	if !ok {
		return nil, fmt.Errorf("invalid query type: %T", query)
	}
	if q.BlockID.Number() > h.domainCfg.BlockCount {
		return nil, errors.NewValidationError(fmt.Sprintf("block id must be between 1 and %d", h.domainCfg.BlockCount))
	}
	return h.aggregator.Aggregate(ctx, q.BlockID)
}

func (h *ScoreQueryHandlers) handleGetBlockChanges(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetBlockChangesQuery)
	if !ok {
		return nil, fmt.Errorf("invalid query type: %T", query)
	}
	return h.changelog.Changes(ctx, q.BlockID, h.domainCfg.ClampHistoryDays(q.Days))
}

func (h *ScoreQueryHandlers) handleGetLatestScore(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetLatestScoreQuery)
	if !ok {
		return nil, fmt.Errorf("invalid query type: %T", query)
	}
	latest, err := h.resolver.Latest(ctx, q.SubcomponentID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, errors.NewNotFoundError("score for subcomponent " + q.SubcomponentID.String())
	}
	return latest.View(), nil
}

func (h *ScoreQueryHandlers) handleGetSubcomponentChanges(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetSubcomponentChangesQuery)
	if !ok {
		return nil, fmt.Errorf("invalid query type: %T", query)
	}
	return h.changelog.SubcomponentChanges(ctx, q.SubcomponentID, h.domainCfg.ClampHistoryDays(q.Days))
}
