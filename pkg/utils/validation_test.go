package utils

import (
	"fmt"
	"testing"
	"time"

	"assessment-backend/domain/config"
	"assessment-backend/domain/core/entities"
	"assessment-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStructScoreEventInput(t *testing.T) {
	tests := []struct {
		name      string
		input     entities.ScoreEventInput
		wantField string
	}{
		{"valid", entities.ScoreEventInput{SubcomponentID: "3-2", OverallScore: 88}, ""},
		{"bad subcomponent", entities.ScoreEventInput{SubcomponentID: "3-9", OverallScore: 88}, "subcomponentId"},
		{"missing subcomponent", entities.ScoreEventInput{OverallScore: 88}, "subcomponentId"},
		{"score too high", entities.ScoreEventInput{SubcomponentID: "3-2", OverallScore: 101}, "overallScore"},
		{"dimension out of range", entities.ScoreEventInput{SubcomponentID: "3-2", OverallScore: 50, DimensionScores: map[string]int{"depth": -3}}, "dimensionScores[depth]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			appErr := errors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Contains(t, appErr.Details, tt.wantField)
		})
	}
}

func TestSubcomponentMessageNamesIndexRange(t *testing.T) {
	err := ValidateStruct(entities.ScoreEventInput{SubcomponentID: "3-9", OverallScore: 88})
	require.Error(t, err)

	appErr := errors.GetAppError(err)
	require.NotNil(t, appErr)
	want := fmt.Sprintf("subcomponentId must look like <block>-<index> with index 1-%d", config.SubcomponentsPerBlock)
	assert.Equal(t, want, appErr.Details["subcomponentId"])
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), WindowStart(now, 30))
	assert.Equal(t, "2026-03-31T12:00:00Z", FormatRFC3339(now))
}
