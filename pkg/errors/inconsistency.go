package errors

import (
	"errors"
	"fmt"
)

// InconsistencyWarning reports a partially applied pipeline: the block
// aggregate cache was updated but the matching history snapshot could not be
// appended. It is returned alongside a successful result, never in place of
// one, and is not retried.
type InconsistencyWarning struct {
	BlockID         string
	Average         *int
	PreviousAverage *int
	Cause           error
}

// NewInconsistencyWarning creates an inconsistency warning for a block
func NewInconsistencyWarning(blockID string, average, previous *int, cause error) *InconsistencyWarning {
	return &InconsistencyWarning{
		BlockID:         blockID,
		Average:         average,
		PreviousAverage: previous,
		Cause:           cause,
	}
}

// Error implements the error interface
func (w *InconsistencyWarning) Error() string {
	return fmt.Sprintf("block %s: cache updated but history snapshot not persisted: %v", w.BlockID, w.Cause)
}

// Unwrap returns the underlying storage failure
func (w *InconsistencyWarning) Unwrap() error {
	return w.Cause
}

// IsInconsistency checks if an error chain carries an InconsistencyWarning
func IsInconsistency(err error) bool {
	var w *InconsistencyWarning
	return errors.As(err, &w)
}
