// Package handlers adapts the scoring services to the command bus.
package handlers

import (
	"context"
	"fmt"

	"assessment-backend/application/commands"
	"assessment-backend/application/commands/bus"
	"assessment-backend/application/services"
	"assessment-backend/domain/config"
	"assessment-backend/domain/core/valueobjects"

	"go.uber.org/zap"
)

// ReconcileAllResult lists per-block outcomes of a full reconcile
type ReconcileAllResult struct {
	Results []*services.ReconcileResult `json:"results"`
	Failed  map[string]string           `json:"failed,omitempty"`
}

// ScoreCommandHandlers serves the scoring commands
type ScoreCommandHandlers struct {
	analysis   *services.AnalysisService
	reconciler *services.Reconciler
	domainCfg  *config.DomainConfig
	logger     *zap.Logger
}

// NewScoreCommandHandlers creates the scoring command handlers
func NewScoreCommandHandlers(
	analysis *services.AnalysisService,
	reconciler *services.Reconciler,
	domainCfg *config.DomainConfig,
	logger *zap.Logger,
) *ScoreCommandHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreCommandHandlers{
		analysis:   analysis,
		reconciler: reconciler,
		domainCfg:  domainCfg,
		logger:     logger,
	}
}

// Register adds every scoring command to the bus
func (h *ScoreCommandHandlers) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{commands.RecordAnalysisCommand{}, h.handleRecordAnalysis},
		{commands.ReconcileBlockCommand{}, h.handleReconcileBlock},
		{commands.ReconcileAllCommand{}, h.handleReconcileAll},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *ScoreCommandHandlers) handleRecordAnalysis(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.RecordAnalysisCommand)
	if !ok {
		return nil, fmt.Errorf("invalid command type: %T", cmd)
	}
	return h.analysis.RecordAnalysis(ctx, c.Input)
}

func (h *ScoreCommandHandlers) handleReconcileBlock(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.ReconcileBlockCommand)
	if !ok {
		return nil, fmt.Errorf("invalid command type: %T", cmd)
	}
	return h.reconciler.Reconcile(ctx, c.BlockID, nil)
}

func (h *ScoreCommandHandlers) handleReconcileAll(ctx context.Context, cmd bus.Command) (interface{}, error) {
	out := &ReconcileAllResult{Results: make([]*services.ReconcileResult, 0, h.domainCfg.BlockCount)}
	for n := 1; n <= h.domainCfg.BlockCount; n++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		blockID := valueobjects.MustBlockID(n)
		result, err := h.reconciler.Reconcile(ctx, blockID, nil)
		if err != nil {
			if out.Failed == nil {
				out.Failed = make(map[string]string)
			}
			out.Failed[blockID.String()] = err.Error()
			h.logger.Error("Block reconcile failed", zap.String("blockID", blockID.String()), zap.Error(err))
			continue
		}
		out.Results = append(out.Results, result)
	}
	return out, nil
}
