package entities

import (
	"testing"
	"time"

	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScoreEventValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   ScoreEventInput
		wantErr bool
	}{
		{"valid", ScoreEventInput{SubcomponentID: "1-1", OverallScore: 80}, false},
		{"malformed id", ScoreEventInput{SubcomponentID: "11", OverallScore: 80}, true},
		{"index out of range", ScoreEventInput{SubcomponentID: "1-7", OverallScore: 80}, true},
		{"score too high", ScoreEventInput{SubcomponentID: "1-1", OverallScore: 101}, true},
		{"negative score", ScoreEventInput{SubcomponentID: "1-1", OverallScore: -5}, true},
		{"bad dimension", ScoreEventInput{SubcomponentID: "1-1", OverallScore: 5, DimensionScores: map[string]int{"depth": 200}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScoreEvent(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScoreEventIsImmutable(t *testing.T) {
	dims := map[string]int{"clarity": 70}
	strengths := []string{"structured"}
	e, err := NewScoreEvent(ScoreEventInput{
		SubcomponentID:  "2-3",
		OverallScore:    64,
		DimensionScores: dims,
		Strengths:       strengths,
	})
	require.NoError(t, err)

	dims["clarity"] = 1
	strengths[0] = "changed"
	got := e.DimensionScores()
	got["clarity"] = 2

	assert.Equal(t, 70, e.DimensionScores()["clarity"])
	assert.Equal(t, []string{"structured"}, e.Strengths())
	assert.Equal(t, "2", e.BlockID().String())
}

func TestWithIdentityAndOrdering(t *testing.T) {
	base, err := NewScoreEvent(ScoreEventInput{SubcomponentID: "1-1", OverallScore: 10})
	require.NoError(t, err)
	assert.False(t, base.HasRequestedTimestamp())

	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	a := base.WithIdentity(1, ts)
	b := base.WithIdentity(2, ts)
	c := base.WithIdentity(3, ts.Add(-time.Second))

	assert.Equal(t, int64(0), base.ID())
	assert.True(t, b.After(a), "equal timestamps tie-break on id")
	assert.False(t, a.After(b))
	assert.True(t, a.After(c), "later timestamp wins over larger id")
	assert.True(t, a.After(nil))
}

func TestChangeDescription(t *testing.T) {
	trigger := valueobjects.MustSubcomponentID("1-1")

	assert.Equal(t, "Score updated from N/A% to 80% after 1-1 analysis",
		ChangeDescription(valueobjects.IntPtr(80), nil, &trigger))
	assert.Equal(t, "Score updated from 80% to 75% after 1-1 analysis",
		ChangeDescription(valueobjects.IntPtr(75), valueobjects.IntPtr(80), &trigger))
	assert.Equal(t, "Block score recalculated: 75%",
		ChangeDescription(valueobjects.IntPtr(75), valueobjects.IntPtr(80), nil))
	assert.Equal(t, "Block score recalculated: N/A%",
		ChangeDescription(nil, valueobjects.IntPtr(80), nil))
}

func TestNewBlockHistorySnapshot(t *testing.T) {
	trigger := valueobjects.MustSubcomponentID("4-2")
	s := NewBlockHistorySnapshot(valueobjects.MustBlockID(4), valueobjects.IntPtr(55), 1, nil, &trigger, time.Now())

	assert.Equal(t, "analysis_completed", s.TriggerEventType)
	assert.Equal(t, 6, s.TotalCount)
	assert.Equal(t, "Score updated from N/A% to 55% after 4-2 analysis", s.ChangeDescription)
	assert.Equal(t, int64(0), s.ID)
}
