package aggregates

import (
	"testing"
	"time"

	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(t *testing.T, id int64, sub string, score int) *entities.ScoreEvent {
	t.Helper()
	e, err := entities.NewScoreEvent(entities.ScoreEventInput{SubcomponentID: sub, OverallScore: score})
	require.NoError(t, err)
	return e.WithIdentity(id, time.Date(2026, 1, 1, 0, 0, int(id), 0, time.UTC))
}

func TestRoundedMean(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   *int
	}{
		{"empty", nil, nil},
		{"single", []int{80}, valueobjects.IntPtr(80)},
		{"exact", []int{80, 70, 90, 60, 100, 50}, valueobjects.IntPtr(75)},
		{"half rounds up", []int{1, 2}, valueobjects.IntPtr(2)},
		{"below half rounds down", []int{70, 80, 91}, valueobjects.IntPtr(80)},
		{"above half rounds up", []int{70, 81, 82}, valueobjects.IntPtr(78)},
		{"zeros", []int{0, 0, 0}, valueobjects.IntPtr(0)},
		{"max", []int{100, 100}, valueobjects.IntPtr(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundedMean(tt.scores))
		})
	}
}

func TestComputeAggregateCountsScoredSubcomponents(t *testing.T) {
	block := valueobjects.MustBlockID(1)

	for n := 0; n <= 6; n++ {
		latest := make([]*entities.ScoreEvent, 6)
		var scores []int
		for i := 0; i < n; i++ {
			score := 50 + i*7
			latest[i] = event(t, int64(i+1), block.Subcomponents()[i].String(), score)
			scores = append(scores, score)
		}

		result := ComputeAggregate(block, latest)
		assert.Equal(t, n, result.ScoredCount)
		assert.Equal(t, 6, result.TotalCount)
		assert.Equal(t, RoundedMean(scores), result.Average)
		assert.Len(t, result.Contributions, n)
	}
}

func TestComputeAggregateEmptyBlock(t *testing.T) {
	result := ComputeAggregate(valueobjects.MustBlockID(2), make([]*entities.ScoreEvent, 6))
	assert.Nil(t, result.Average)
	assert.Equal(t, 0, result.ScoredCount)
}

func TestChanged(t *testing.T) {
	assert.False(t, Changed(nil, nil))
	assert.True(t, Changed(valueobjects.IntPtr(80), nil))
	assert.True(t, Changed(nil, valueobjects.IntPtr(80)))
	assert.True(t, Changed(valueobjects.IntPtr(0), nil))
	assert.False(t, Changed(valueobjects.IntPtr(75), valueobjects.IntPtr(75)))
	assert.True(t, Changed(valueobjects.IntPtr(75), valueobjects.IntPtr(74)))
}

func TestToCache(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("x", 3600))
	result := AggregateResult{BlockID: valueobjects.MustBlockID(3), Average: valueobjects.IntPtr(60), ScoredCount: 2, TotalCount: 6}

	row := result.ToCache(now)
	assert.Equal(t, "3", row.BlockID.String())
	assert.Equal(t, 60, *row.AverageScore)
	assert.Equal(t, 2, row.ScoredCount)
	assert.Equal(t, time.UTC, row.LastUpdatedAt.Location())
	assert.True(t, row.LastUpdatedAt.Equal(now))
}
