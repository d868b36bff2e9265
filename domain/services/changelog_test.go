package services

import (
	"testing"
	"time"

	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func snapshot(id int64, score *int) *entities.BlockHistorySnapshot {
	return &entities.BlockHistorySnapshot{
		ID:          id,
		BlockID:     valueobjects.MustBlockID(1),
		Score:       score,
		ScoredCount: 1,
		TotalCount:  6,
		CreatedAt:   t0.Add(time.Duration(id) * time.Hour),
	}
}

func TestLag(t *testing.T) {
	seed := 0
	pairs := Lag([]int{1, 2, 3}, &seed)
	require.Len(t, pairs, 3)
	assert.Equal(t, 0, *pairs[0].Previous)
	assert.Equal(t, 1, *pairs[1].Previous)
	assert.Equal(t, 2, *pairs[2].Previous)

	assert.Nil(t, Lag([]int{5}, nil)[0].Previous)
	assert.Empty(t, Lag[int](nil, nil))
}

func TestPairSnapshotsImprovements(t *testing.T) {
	// N/A -> 75, 75 -> 78, 78 -> 74; given out of order on purpose.
	snaps := []*entities.BlockHistorySnapshot{
		snapshot(3, valueobjects.IntPtr(74)),
		snapshot(1, valueobjects.IntPtr(75)),
		snapshot(2, valueobjects.IntPtr(78)),
	}

	changes := PairSnapshots(snaps, nil)
	require.Len(t, changes, 3)

	assert.Equal(t, int64(3), changes[0].SnapshotID)
	assert.Equal(t, -4, changes[0].Improvement)
	assert.Equal(t, 78, *changes[0].PreviousScore)

	assert.Equal(t, int64(2), changes[1].SnapshotID)
	assert.Equal(t, 3, changes[1].Improvement)

	assert.Equal(t, int64(1), changes[2].SnapshotID)
	assert.Equal(t, 0, changes[2].Improvement)
	assert.Equal(t, 75, *changes[2].PreviousScore, "no predecessor defaults to current")
}

func TestPairSnapshotsUsesPredecessorOutsideWindow(t *testing.T) {
	before := snapshot(7, valueobjects.IntPtr(60))
	changes := PairSnapshots([]*entities.BlockHistorySnapshot{snapshot(9, valueobjects.IntPtr(66))}, before)

	require.Len(t, changes, 1)
	assert.Equal(t, 6, changes[0].Improvement)
	assert.Equal(t, 60, *changes[0].PreviousScore)
}

func TestPairSnapshotsNullScores(t *testing.T) {
	snaps := []*entities.BlockHistorySnapshot{
		snapshot(1, valueobjects.IntPtr(40)),
		snapshot(2, nil),
		snapshot(3, valueobjects.IntPtr(50)),
	}

	changes := PairSnapshots(snaps, nil)
	require.Len(t, changes, 3)
	// 3 follows a null snapshot: previous coalesces to the current score.
	assert.Equal(t, 0, changes[0].Improvement)
	assert.Equal(t, 50, *changes[0].PreviousScore)
	// 2 is itself null.
	assert.Equal(t, 0, changes[1].Improvement)
	assert.Nil(t, changes[1].Score)
	assert.Equal(t, 40, *changes[1].PreviousScore)
}

func TestDimensionChanges(t *testing.T) {
	current := map[string]int{"clarity": 80, "depth": 60, "novel": 50}
	previous := map[string]int{"clarity": 70, "depth": 65, "retired": 10}

	got := DimensionChanges(current, previous)
	assert.Equal(t, DimensionChange{Current: 80, Previous: 70, Delta: 10}, got["clarity"])
	assert.Equal(t, DimensionChange{Current: 60, Previous: 65, Delta: -5}, got["depth"])
	assert.Equal(t, DimensionChange{Current: 50, Previous: 50, Delta: 0}, got["novel"])
	_, ok := got["retired"]
	assert.False(t, ok, "only dimensions of current are reported")

	assert.Len(t, DimensionChanges(current, nil), 3)
	assert.Empty(t, DimensionChanges(nil, previous))
}

func TestPairScoreEvents(t *testing.T) {
	mk := func(id int64, at time.Time, score int, dims map[string]int) *entities.ScoreEvent {
		e, err := entities.NewScoreEvent(entities.ScoreEventInput{SubcomponentID: "1-2", OverallScore: score, DimensionScores: dims})
		require.NoError(t, err)
		return e.WithIdentity(id, at)
	}

	first := mk(1, t0, 60, map[string]int{"clarity": 60})
	// Same timestamp as first: id breaks the tie.
	second := mk(2, t0, 70, map[string]int{"clarity": 75, "depth": 40})
	third := mk(3, t0.Add(time.Minute), 65, map[string]int{"clarity": 70})

	changes := PairScoreEvents([]*entities.ScoreEvent{third, first, second}, nil)
	require.Len(t, changes, 3)

	assert.Equal(t, int64(3), changes[0].EventID)
	assert.Equal(t, -5, changes[0].Improvement)
	assert.Equal(t, -5, changes[0].Dimensions["clarity"].Delta)

	assert.Equal(t, int64(2), changes[1].EventID)
	assert.Equal(t, 10, changes[1].Improvement)
	assert.Equal(t, 15, changes[1].Dimensions["clarity"].Delta)
	assert.Equal(t, 0, changes[1].Dimensions["depth"].Delta)

	assert.Equal(t, int64(1), changes[2].EventID)
	assert.Equal(t, 0, changes[2].Improvement)
	assert.Equal(t, 60, changes[2].PreviousScore)
}
