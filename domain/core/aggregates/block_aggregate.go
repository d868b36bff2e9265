package aggregates

import (
	"time"

	"assessment-backend/domain/config"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
)

// BlockAggregate is the cached aggregate of one block.
// There is at most one per block; it is replaced wholesale on every upsert.
type BlockAggregate struct {
	BlockID       valueobjects.BlockID `json:"blockId"`
	AverageScore  *int                 `json:"averageScore"`
	ScoredCount   int                  `json:"scoredCount"`
	TotalCount    int                  `json:"totalCount"`
	LastUpdatedAt time.Time            `json:"lastUpdatedAt"`
}

// Contribution is one subcomponent's latest score feeding an aggregate
type Contribution struct {
	SubcomponentID valueobjects.SubcomponentID `json:"subcomponentId"`
	EventID        int64                       `json:"eventId"`
	Score          int                         `json:"score"`
}

// AggregateResult is a freshly computed block aggregate
type AggregateResult struct {
	BlockID       valueobjects.BlockID `json:"blockId"`
	Average       *int                 `json:"average"`
	ScoredCount   int                  `json:"scoredCount"`
	TotalCount    int                  `json:"totalCount"`
	Contributions []Contribution       `json:"contributions"`
}

// ComputeAggregate derives a block aggregate from the latest event of each
// canonical subcomponent. latest holds nil for subcomponents never scored.
func ComputeAggregate(blockID valueobjects.BlockID, latest []*entities.ScoreEvent) AggregateResult {
	result := AggregateResult{
		BlockID:       blockID,
		TotalCount:    config.SubcomponentsPerBlock,
		Contributions: make([]Contribution, 0, len(latest)),
	}

	scores := make([]int, 0, len(latest))
	for _, event := range latest {
		if event == nil {
			continue
		}
		scores = append(scores, event.OverallScore())
		result.Contributions = append(result.Contributions, Contribution{
			SubcomponentID: event.SubcomponentID(),
			EventID:        event.ID(),
			Score:          event.OverallScore(),
		})
	}

	result.ScoredCount = len(scores)
	result.Average = RoundedMean(scores)
	return result
}

// RoundedMean returns the arithmetic mean rounded half up, or nil when empty.
// Scores are non-negative so integer arithmetic gives exact half-up rounding.
func RoundedMean(scores []int) *int {
	if len(scores) == 0 {
		return nil
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	n := len(scores)
	avg := (2*sum + n) / (2 * n)
	return &avg
}

// Changed reports whether a new average differs from the cached one.
// A missing value on exactly one side is a change.
func Changed(newAverage, previousAverage *int) bool {
	return !valueobjects.ScoresEqual(newAverage, previousAverage)
}

// ToCache converts a result into the cache row written by an upsert
func (r AggregateResult) ToCache(now time.Time) BlockAggregate {
	return BlockAggregate{
		BlockID:       r.BlockID,
		AverageScore:  r.Average,
		ScoredCount:   r.ScoredCount,
		TotalCount:    r.TotalCount,
		LastUpdatedAt: now.UTC(),
	}
}
