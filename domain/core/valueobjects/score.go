package valueobjects

import (
	"fmt"

	"assessment-backend/domain/config"
	"assessment-backend/pkg/errors"
)

// ValidateScore checks that a score lies in the closed 0..100 range.
func ValidateScore(field string, value int) error {
	if value < config.MinScore || value > config.MaxScore {
		return errors.NewValidationError(fmt.Sprintf("%s must be between %d and %d", field, config.MinScore, config.MaxScore)).
			WithDetails(map[string]interface{}{"field": field, "value": value})
	}
	return nil
}

// ValidateDimensionScores checks every dimension score and name.
func ValidateDimensionScores(dimensions map[string]int) error {
	for name, value := range dimensions {
		if name == "" {
			return errors.NewValidationError("dimension name cannot be empty")
		}
		if err := ValidateScore("dimension "+name, value); err != nil {
			return err
		}
	}
	return nil
}

// FormatScore renders a nullable score the way change descriptions print it.
func FormatScore(score *int) string {
	if score == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *score)
}

// ScoresEqual compares two nullable scores. Null equals only null.
func ScoresEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
