package commands

import (
	"assessment-backend/domain/core/entities"
	"assessment-backend/pkg/utils"
)

// RecordAnalysisCommand submits one analysis result for a subcomponent
type RecordAnalysisCommand struct {
	Input entities.ScoreEventInput
}

// Validate checks the input against its struct tags
func (c RecordAnalysisCommand) Validate() error {
	return utils.ValidateStruct(c.Input)
}
