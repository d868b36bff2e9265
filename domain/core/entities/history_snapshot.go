package entities

import (
	"fmt"
	"time"

	"assessment-backend/domain/config"
	"assessment-backend/domain/core/valueobjects"
)

// BlockHistorySnapshot records a change of a block aggregate.
// Snapshots are append-only and strictly ordered by ID within a block.
type BlockHistorySnapshot struct {
	ID                    int64                        `json:"id"`
	BlockID               valueobjects.BlockID         `json:"blockId"`
	Score                 *int                         `json:"score"`
	ScoredCount           int                          `json:"scoredCount"`
	TotalCount            int                          `json:"totalCount"`
	TriggerSubcomponentID *valueobjects.SubcomponentID `json:"triggerSubcomponentId"`
	TriggerEventType      string                       `json:"triggerEventType"`
	ChangeDescription     string                       `json:"changeDescription"`
	CreatedAt             time.Time                    `json:"createdAt"`
}

// NewBlockHistorySnapshot builds an unsaved snapshot for a changed aggregate.
func NewBlockHistorySnapshot(
	blockID valueobjects.BlockID,
	score *int,
	scoredCount int,
	previous *int,
	trigger *valueobjects.SubcomponentID,
	now time.Time,
) *BlockHistorySnapshot {
	return &BlockHistorySnapshot{
		BlockID:               blockID,
		Score:                 score,
		ScoredCount:           scoredCount,
		TotalCount:            config.SubcomponentsPerBlock,
		TriggerSubcomponentID: trigger,
		TriggerEventType:      config.TriggerEventAnalysisCompleted,
		ChangeDescription:     ChangeDescription(score, previous, trigger),
		CreatedAt:             now.UTC(),
	}
}

// ChangeDescription renders the human readable reason for a snapshot.
func ChangeDescription(score, previous *int, trigger *valueobjects.SubcomponentID) string {
	if trigger != nil {
		return fmt.Sprintf("Score updated from %s%% to %s%% after %s analysis",
			valueobjects.FormatScore(previous), valueobjects.FormatScore(score), trigger.String())
	}
	return fmt.Sprintf("Block score recalculated: %s%%", valueobjects.FormatScore(score))
}
