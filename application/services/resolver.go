package services

import (
	"context"

	"assessment-backend/application/ports"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
)

// LatestScoreResolver finds the current score of a subcomponent
type LatestScoreResolver struct {
	store ports.ScoreEventStore
}

// NewLatestScoreResolver creates a new resolver
func NewLatestScoreResolver(store ports.ScoreEventStore) *LatestScoreResolver {
	return &LatestScoreResolver{store: store}
}

// Latest returns the subcomponent's event with the greatest (createdAt, id),
// or nil when it was never scored. Equal timestamps resolve to the higher id.
func (r *LatestScoreResolver) Latest(ctx context.Context, subcomponentID valueobjects.SubcomponentID) (*entities.ScoreEvent, error) {
	return r.store.Latest(ctx, subcomponentID)
}
