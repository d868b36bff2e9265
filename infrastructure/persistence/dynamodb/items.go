package dynamodb

import (
	"fmt"
	"time"

	"assessment-backend/domain/core/aggregates"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
)

// Single-table layout:
//
//	COUNTER#<name>      COUNTER                      atomic id sequence
//	SUB#<block>-<index> EVENT#<createdAt>#<id>       score event
//	SUB#<block>-<index> WATERMARK                    newest stamped createdAt
//	BLOCK#<block>       AGGREGATE                    cached aggregate (GSI1: AGGREGATES / BLOCK#<nnnn>)
//	BLOCK#<block>       HISTORY#<id>                 history snapshot
const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z"

	eventSKPrefix   = "EVENT#"
	historySKPrefix = "HISTORY#"
	aggregateSK     = "AGGREGATE"
	watermarkSK     = "WATERMARK"
	aggregatesGSIPK = "AGGREGATES"

	counterScoreEvents = "SCORE_EVENT"
	counterHistory     = "BLOCK_HISTORY"

	entityScoreEvent = "SCORE_EVENT"
	entityAggregate  = "BLOCK_AGGREGATE"
	entityHistory    = "BLOCK_HISTORY"
)

// scoreEventItem is the DynamoDB item structure for a score event
type scoreEventItem struct {
	PK              string         `dynamodbav:"PK"`
	SK              string         `dynamodbav:"SK"`
	GSI1PK          string         `dynamodbav:"GSI1PK"` // BLOCK#<block>
	GSI1SK          string         `dynamodbav:"GSI1SK"` // EVENT#<createdAt>#<id>
	EntityType      string         `dynamodbav:"EntityType"`
	EventID         int64          `dynamodbav:"EventID"`
	SubcomponentID  string         `dynamodbav:"SubcomponentID"`
	BlockID         string         `dynamodbav:"BlockID"`
	OverallScore    int            `dynamodbav:"OverallScore"`
	DimensionScores map[string]int `dynamodbav:"DimensionScores,omitempty"`
	Strengths       []string       `dynamodbav:"Strengths,omitempty"`
	Weaknesses      []string       `dynamodbav:"Weaknesses,omitempty"`
	Recommendations []string       `dynamodbav:"Recommendations,omitempty"`
	SessionID       string         `dynamodbav:"SessionID,omitempty"`
	ActorID         string         `dynamodbav:"ActorID,omitempty"`
	CreatedAt       string         `dynamodbav:"CreatedAt"`
}

// aggregateItem is the DynamoDB item structure for a cached block aggregate
type aggregateItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	GSI1PK        string `dynamodbav:"GSI1PK"`
	GSI1SK        string `dynamodbav:"GSI1SK"`
	EntityType    string `dynamodbav:"EntityType"`
	BlockNumber   int    `dynamodbav:"BlockNumber"`
	AverageScore  *int   `dynamodbav:"AverageScore"`
	ScoredCount   int    `dynamodbav:"ScoredCount"`
	TotalCount    int    `dynamodbav:"TotalCount"`
	LastUpdatedAt string `dynamodbav:"LastUpdatedAt"`
}

// historyItem is the DynamoDB item structure for a history snapshot
type historyItem struct {
	PK                    string  `dynamodbav:"PK"`
	SK                    string  `dynamodbav:"SK"`
	EntityType            string  `dynamodbav:"EntityType"`
	SnapshotID            int64   `dynamodbav:"SnapshotID"`
	BlockNumber           int     `dynamodbav:"BlockNumber"`
	Score                 *int    `dynamodbav:"Score"`
	ScoredCount           int     `dynamodbav:"ScoredCount"`
	TotalCount            int     `dynamodbav:"TotalCount"`
	TriggerSubcomponentID *string `dynamodbav:"TriggerSubcomponentID,omitempty"`
	TriggerEventType      string  `dynamodbav:"TriggerEventType"`
	ChangeDescription     string  `dynamodbav:"ChangeDescription"`
	CreatedAt             string  `dynamodbav:"CreatedAt"`
}

func counterPK(name string) string { return "COUNTER#" + name }

func subcomponentPK(id valueobjects.SubcomponentID) string { return "SUB#" + id.String() }

func blockPK(id valueobjects.BlockID) string { return "BLOCK#" + id.String() }

// formatTimestamp renders a fixed-width UTC timestamp so that sort keys
// order lexicographically the same way the times order chronologically.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// eventSK orders events by (createdAt, id)
func eventSK(createdAt time.Time, id int64) string {
	return fmt.Sprintf("%s%s#%020d", eventSKPrefix, formatTimestamp(createdAt), id)
}

func historySK(id int64) string {
	return fmt.Sprintf("%s%020d", historySKPrefix, id)
}

func aggregateGSISK(id valueobjects.BlockID) string {
	return fmt.Sprintf("BLOCK#%04d", id.Number())
}

func toScoreEventItem(e *entities.ScoreEvent) scoreEventItem {
	sk := eventSK(e.CreatedAt(), e.ID())
	return scoreEventItem{
		PK:              subcomponentPK(e.SubcomponentID()),
		SK:              sk,
		GSI1PK:          blockPK(e.BlockID()),
		GSI1SK:          sk,
		EntityType:      entityScoreEvent,
		EventID:         e.ID(),
		SubcomponentID:  e.SubcomponentID().String(),
		BlockID:         e.BlockID().String(),
		OverallScore:    e.OverallScore(),
		DimensionScores: e.DimensionScores(),
		Strengths:       e.Strengths(),
		Weaknesses:      e.Weaknesses(),
		Recommendations: e.Recommendations(),
		SessionID:       e.SessionID(),
		ActorID:         e.ActorID(),
		CreatedAt:       formatTimestamp(e.CreatedAt()),
	}
}

func (item scoreEventItem) toEntity() (*entities.ScoreEvent, error) {
	sub, err := valueobjects.ParseSubcomponentID(item.SubcomponentID)
	if err != nil {
		return nil, fmt.Errorf("corrupt score event %d: %w", item.EventID, err)
	}
	createdAt, err := parseTimestamp(item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt score event %d timestamp: %w", item.EventID, err)
	}
	return entities.ReconstructScoreEvent(
		item.EventID, sub, item.OverallScore, item.DimensionScores,
		item.Strengths, item.Weaknesses, item.Recommendations,
		item.SessionID, item.ActorID, createdAt,
	), nil
}

func toAggregateItem(blockID valueobjects.BlockID, average *int, scoredCount, totalCount int, now time.Time) aggregateItem {
	return aggregateItem{
		PK:            blockPK(blockID),
		SK:            aggregateSK,
		GSI1PK:        aggregatesGSIPK,
		GSI1SK:        aggregateGSISK(blockID),
		EntityType:    entityAggregate,
		BlockNumber:   blockID.Number(),
		AverageScore:  average,
		ScoredCount:   scoredCount,
		TotalCount:    totalCount,
		LastUpdatedAt: formatTimestamp(now),
	}
}

func (item aggregateItem) toAggregate() (*aggregates.BlockAggregate, error) {
	blockID, err := valueobjects.NewBlockID(item.BlockNumber)
	if err != nil {
		return nil, err
	}
	updated, err := parseTimestamp(item.LastUpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt aggregate for block %d: %w", item.BlockNumber, err)
	}
	return &aggregates.BlockAggregate{
		BlockID:       blockID,
		AverageScore:  item.AverageScore,
		ScoredCount:   item.ScoredCount,
		TotalCount:    item.TotalCount,
		LastUpdatedAt: updated,
	}, nil
}

func toHistoryItem(s *entities.BlockHistorySnapshot) historyItem {
	item := historyItem{
		PK:                blockPK(s.BlockID),
		SK:                historySK(s.ID),
		EntityType:        entityHistory,
		SnapshotID:        s.ID,
		BlockNumber:       s.BlockID.Number(),
		Score:             s.Score,
		ScoredCount:       s.ScoredCount,
		TotalCount:        s.TotalCount,
		TriggerEventType:  s.TriggerEventType,
		ChangeDescription: s.ChangeDescription,
		CreatedAt:         formatTimestamp(s.CreatedAt),
	}
	if s.TriggerSubcomponentID != nil {
		trigger := s.TriggerSubcomponentID.String()
		item.TriggerSubcomponentID = &trigger
	}
	return item
}

func (item historyItem) toSnapshot() (*entities.BlockHistorySnapshot, error) {
	blockID, err := valueobjects.NewBlockID(item.BlockNumber)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTimestamp(item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt history snapshot %d: %w", item.SnapshotID, err)
	}
	snap := &entities.BlockHistorySnapshot{
		ID:                item.SnapshotID,
		BlockID:           blockID,
		Score:             item.Score,
		ScoredCount:       item.ScoredCount,
		TotalCount:        item.TotalCount,
		TriggerEventType:  item.TriggerEventType,
		ChangeDescription: item.ChangeDescription,
		CreatedAt:         createdAt,
	}
	if item.TriggerSubcomponentID != nil {
		trigger, err := valueobjects.ParseSubcomponentID(*item.TriggerSubcomponentID)
		if err != nil {
			return nil, err
		}
		snap.TriggerSubcomponentID = &trigger
	}
	return snap, nil
}
