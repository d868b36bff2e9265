package queries

import (
	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/pkg/errors"
)

// GetBlockCacheQuery reads the cached aggregate of one block
type GetBlockCacheQuery struct {
	BlockID valueobjects.BlockID
}

// Validate validates the GetBlockCacheQuery
func (q GetBlockCacheQuery) Validate() error {
	return requireBlock(q.BlockID)
}

// ListBlockCachesQuery reads every cached aggregate
type ListBlockCachesQuery struct{}

// Validate implements bus.Query
func (ListBlockCachesQuery) Validate() error { return nil }

// GetBlockAggregateQuery computes a block aggregate from the latest scores
// without touching the cache.
type GetBlockAggregateQuery struct {
	BlockID valueobjects.BlockID
}

// Validate validates the GetBlockAggregateQuery
func (q GetBlockAggregateQuery) Validate() error {
	return requireBlock(q.BlockID)
}

// GetBlockChangesQuery reads the block's change log over a trailing window.
// Days of zero selects the configured default.
type GetBlockChangesQuery struct {
	BlockID valueobjects.BlockID
	Days    int
}

// Validate validates the GetBlockChangesQuery
func (q GetBlockChangesQuery) Validate() error {
	if err := requireBlock(q.BlockID); err != nil {
		return err
	}
	return validateDays(q.Days)
}

// GetLatestScoreQuery reads the most recent score event of a subcomponent
type GetLatestScoreQuery struct {
	SubcomponentID valueobjects.SubcomponentID
}

// Validate validates the GetLatestScoreQuery
func (q GetLatestScoreQuery) Validate() error {
	return requireSubcomponent(q.SubcomponentID)
}

// GetSubcomponentChangesQuery reads score-to-score changes of a subcomponent
type GetSubcomponentChangesQuery struct {
	SubcomponentID valueobjects.SubcomponentID
	Days           int
}

// Validate validates the GetSubcomponentChangesQuery
func (q GetSubcomponentChangesQuery) Validate() error {
	if err := requireSubcomponent(q.SubcomponentID); err != nil {
		return err
	}
	return validateDays(q.Days)
}

func requireBlock(id valueobjects.BlockID) error {
	if id.IsZero() {
		return errors.NewValidationError("block id is required")
	}
	return nil
}

func requireSubcomponent(id valueobjects.SubcomponentID) error {
	if id.IsZero() {
		return errors.NewValidationError("subcomponent id is required")
	}
	return nil
}

func validateDays(days int) error {
	if days < 0 {
		return errors.NewValidationError("days must be a positive number of days")
	}
	return nil
}
