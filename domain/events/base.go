package events

import (
	"time"

	"assessment-backend/domain/core/valueobjects"
)

// SourceAssessment is the EventBridge source for every event of this service
const SourceAssessment = "assessment.scoring"

// Event types
const (
	TypeAnalysisRecorded   = "assessment.analysis_recorded"
	TypeBlockScoreChanged  = "assessment.block_score_changed"
	TypeHistoryGapDetected = "assessment.history_gap_detected"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// AnalysisRecorded is raised after a score event is persisted
type AnalysisRecorded struct {
	BaseEvent
	EventID        int64  `json:"event_id"`
	SubcomponentID string `json:"subcomponent_id"`
	BlockID        string `json:"block_id"`
	OverallScore   int    `json:"overall_score"`
	ActorID        string `json:"actor_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
}

// NewAnalysisRecorded creates an AnalysisRecorded event
func NewAnalysisRecorded(eventID int64, sub valueobjects.SubcomponentID, score int, actorID, sessionID string, timestamp time.Time) AnalysisRecorded {
	return AnalysisRecorded{
		BaseEvent: BaseEvent{
			AggregateID: sub.Block().String(),
			EventType:   TypeAnalysisRecorded,
			Timestamp:   timestamp,
			Version:     1,
		},
		EventID:        eventID,
		SubcomponentID: sub.String(),
		BlockID:        sub.Block().String(),
		OverallScore:   score,
		ActorID:        actorID,
		SessionID:      sessionID,
	}
}

// BlockScoreChanged is raised when reconcile changes a block aggregate
type BlockScoreChanged struct {
	BaseEvent
	BlockID             string `json:"block_id"`
	PreviousAverage     *int   `json:"previous_average"`
	Average             *int   `json:"average"`
	ScoredCount         int    `json:"scored_count"`
	TriggerSubcomponent string `json:"trigger_subcomponent,omitempty"`
	HistoryRecorded     bool   `json:"history_recorded"`
}

// NewBlockScoreChanged creates a BlockScoreChanged event
func NewBlockScoreChanged(block valueobjects.BlockID, previous, average *int, scoredCount int, trigger *valueobjects.SubcomponentID, historyRecorded bool, timestamp time.Time) BlockScoreChanged {
	e := BlockScoreChanged{
		BaseEvent: BaseEvent{
			AggregateID: block.String(),
			EventType:   TypeBlockScoreChanged,
			Timestamp:   timestamp,
			Version:     1,
		},
		BlockID:         block.String(),
		PreviousAverage: previous,
		Average:         average,
		ScoredCount:     scoredCount,
		HistoryRecorded: historyRecorded,
	}
	if trigger != nil {
		e.TriggerSubcomponent = trigger.String()
	}
	return e
}

// HistoryGapDetected is raised when a cache upsert succeeded but the history
// snapshot for it could not be written.
type HistoryGapDetected struct {
	BaseEvent
	BlockID string `json:"block_id"`
	Average *int   `json:"average"`
	Reason  string `json:"reason"`
}

// NewHistoryGapDetected creates a HistoryGapDetected event
func NewHistoryGapDetected(block valueobjects.BlockID, average *int, reason string, timestamp time.Time) HistoryGapDetected {
	return HistoryGapDetected{
		BaseEvent: BaseEvent{
			AggregateID: block.String(),
			EventType:   TypeHistoryGapDetected,
			Timestamp:   timestamp,
			Version:     1,
		},
		BlockID: block.String(),
		Average: average,
		Reason:  reason,
	}
}
