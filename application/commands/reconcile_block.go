package commands

import (
	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/pkg/errors"
)

// ReconcileBlockCommand recomputes one block aggregate on demand
type ReconcileBlockCommand struct {
	BlockID valueobjects.BlockID
}

// Validate rejects the zero block
func (c ReconcileBlockCommand) Validate() error {
	if c.BlockID.IsZero() {
		return errors.NewValidationError("block id is required")
	}
	return nil
}

// ReconcileAllCommand reconciles every block of the taxonomy in order
type ReconcileAllCommand struct{}

// Validate implements bus.Command
func (ReconcileAllCommand) Validate() error { return nil }
