// Package services holds pure domain computations over score history.
// Nothing here performs I/O.
package services

import (
	"sort"
	"time"

	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
)

// Lagged pairs an element of an ordered sequence with the element before it.
type Lagged[T any] struct {
	Current  T
	Previous *T
}

// Lag walks an ascending sequence and pairs each element with its predecessor.
// seed is the element immediately before ordered[0], if any.
func Lag[T any](ordered []T, seed *T) []Lagged[T] {
	out := make([]Lagged[T], 0, len(ordered))
	prev := seed
	for i := range ordered {
		out = append(out, Lagged[T]{Current: ordered[i], Previous: prev})
		prev = &ordered[i]
	}
	return out
}

// ChangeEvent is one history snapshot paired with its predecessor
type ChangeEvent struct {
	SnapshotID            int64                        `json:"snapshotId"`
	BlockID               valueobjects.BlockID         `json:"blockId"`
	Score                 *int                         `json:"score"`
	PreviousScore         *int                         `json:"previousScore"`
	Improvement           int                          `json:"improvement"`
	ScoredCount           int                          `json:"scoredCount"`
	TotalCount            int                          `json:"totalCount"`
	TriggerSubcomponentID *valueobjects.SubcomponentID `json:"triggerSubcomponentId"`
	TriggerEventType      string                       `json:"triggerEventType"`
	ChangeDescription     string                       `json:"changeDescription"`
	CreatedAt             time.Time                    `json:"createdAt"`
}

// PairSnapshots turns block snapshots into change events, most recent first.
// Snapshots are ordered by id before pairing; predecessor is the snapshot
// immediately preceding the first one, or nil when none exists.
func PairSnapshots(snapshots []*entities.BlockHistorySnapshot, predecessor *entities.BlockHistorySnapshot) []ChangeEvent {
	ordered := make([]*entities.BlockHistorySnapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var seed **entities.BlockHistorySnapshot
	if predecessor != nil {
		seed = &predecessor
	}

	pairs := Lag(ordered, seed)
	changes := make([]ChangeEvent, 0, len(pairs))
	for i := len(pairs) - 1; i >= 0; i-- {
		cur := pairs[i].Current
		previous := cur.Score
		if pairs[i].Previous != nil && (*pairs[i].Previous).Score != nil {
			previous = (*pairs[i].Previous).Score
		}
		changes = append(changes, ChangeEvent{
			SnapshotID:            cur.ID,
			BlockID:               cur.BlockID,
			Score:                 cur.Score,
			PreviousScore:         previous,
			Improvement:           improvement(cur.Score, previous),
			ScoredCount:           cur.ScoredCount,
			TotalCount:            cur.TotalCount,
			TriggerSubcomponentID: cur.TriggerSubcomponentID,
			TriggerEventType:      cur.TriggerEventType,
			ChangeDescription:     cur.ChangeDescription,
			CreatedAt:             cur.CreatedAt,
		})
	}
	return changes
}

// DimensionChange is the movement of one named dimension between two events
type DimensionChange struct {
	Current  int `json:"current"`
	Previous int `json:"previous"`
	Delta    int `json:"delta"`
}

// DimensionChanges compares every dimension of current against previous.
// A dimension missing from previous reports itself as the previous value.
func DimensionChanges(current, previous map[string]int) map[string]DimensionChange {
	out := make(map[string]DimensionChange, len(current))
	for name, cur := range current {
		prev, ok := previous[name]
		if !ok {
			prev = cur
		}
		out[name] = DimensionChange{Current: cur, Previous: prev, Delta: cur - prev}
	}
	return out
}

// ScoreChange is one score event of a subcomponent paired with its predecessor
type ScoreChange struct {
	EventID        int64                       `json:"eventId"`
	SubcomponentID valueobjects.SubcomponentID `json:"subcomponentId"`
	OverallScore   int                         `json:"overallScore"`
	PreviousScore  int                         `json:"previousScore"`
	Improvement    int                         `json:"improvement"`
	Dimensions     map[string]DimensionChange  `json:"dimensions"`
	CreatedAt      time.Time                   `json:"createdAt"`
}

// PairScoreEvents turns subcomponent events into score changes, most recent
// first. Events are ordered by (createdAt, id) before pairing.
func PairScoreEvents(events []*entities.ScoreEvent, predecessor *entities.ScoreEvent) []ScoreChange {
	ordered := make([]*entities.ScoreEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[j].After(ordered[i]) })

	var seed **entities.ScoreEvent
	if predecessor != nil {
		seed = &predecessor
	}

	pairs := Lag(ordered, seed)
	changes := make([]ScoreChange, 0, len(pairs))
	for i := len(pairs) - 1; i >= 0; i-- {
		cur := pairs[i].Current
		previousScore := cur.OverallScore()
		var previousDims map[string]int
		if pairs[i].Previous != nil {
			prev := *pairs[i].Previous
			previousScore = prev.OverallScore()
			previousDims = prev.DimensionScores()
		}
		changes = append(changes, ScoreChange{
			EventID:        cur.ID(),
			SubcomponentID: cur.SubcomponentID(),
			OverallScore:   cur.OverallScore(),
			PreviousScore:  previousScore,
			Improvement:    cur.OverallScore() - previousScore,
			Dimensions:     DimensionChanges(cur.DimensionScores(), previousDims),
			CreatedAt:      cur.CreatedAt(),
		})
	}
	return changes
}

func improvement(current, previous *int) int {
	if current == nil || previous == nil {
		return 0
	}
	return *current - *previous
}
