package handlers

import (
	"net/http"

	"assessment-backend/application/commands"
	"assessment-backend/application/commands/bus"
	cmdhandlers "assessment-backend/application/commands/handlers"
	"assessment-backend/application/queries"
	querybus "assessment-backend/application/queries/bus"
	"assessment-backend/application/services"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/pkg/common"
	"assessment-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxAnalysisBodyBytes = 1 << 20

// ScoreHandler serves the scoring API
type ScoreHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errs       *errors.ErrorHandler
	logger     *zap.Logger
}

// NewScoreHandler creates a new score handler
func NewScoreHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errs *errors.ErrorHandler,
	logger *zap.Logger,
) *ScoreHandler {
	return &ScoreHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errs:       errs,
		logger:     logger,
	}
}

// RecordAnalysis handles POST /analyses
func (h *ScoreHandler) RecordAnalysis(w http.ResponseWriter, r *http.Request) {
	var input entities.ScoreEventInput
	if err := common.ParseJSONBody(w, r, &input, maxAnalysisBodyBytes); err != nil {
		h.errs.Handle(w, r, errors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if actorID, ok := common.ActorID(r.Context()); ok {
		input.ActorID = actorID
	}

	result, err := h.commandBus.Send(r.Context(), commands.RecordAnalysisCommand{Input: input})
	if err != nil {
		if errors.IsStorage(err) {
			err = errors.Wrap(err, "analysis not saved")
		}
		h.errs.Handle(w, r, err)
		return
	}

	recorded := result.(*services.RecordAnalysisResult)
	common.RespondWithMeta(w, http.StatusCreated, recorded, h.meta(r, recorded.Reconcile))
}

// ListBlocks handles GET /blocks
func (h *ScoreHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.ListBlockCachesQuery{})
}

// GetBlockCache handles GET /blocks/{blockID}/cache
func (h *ScoreHandler) GetBlockCache(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.blockParam(w, r)
	if !ok {
		return
	}
	h.ask(w, r, queries.GetBlockCacheQuery{BlockID: blockID})
}

// GetBlockAggregate handles GET /blocks/{blockID}/aggregate
func (h *ScoreHandler) GetBlockAggregate(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.blockParam(w, r)
	if !ok {
		return
	}
	h.ask(w, r, queries.GetBlockAggregateQuery{BlockID: blockID})
}

// ReconcileBlock handles POST /blocks/{blockID}/reconcile
func (h *ScoreHandler) ReconcileBlock(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.blockParam(w, r)
	if !ok {
		return
	}
	result, err := h.commandBus.Send(r.Context(), commands.ReconcileBlockCommand{BlockID: blockID})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	reconciled := result.(*services.ReconcileResult)
	common.RespondWithMeta(w, http.StatusOK, reconciled, h.meta(r, reconciled))
}

// ReconcileAll handles POST /blocks/reconcile
func (h *ScoreHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.commandBus.Send(r.Context(), commands.ReconcileAllCommand{})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	all := result.(*cmdhandlers.ReconcileAllResult)
	status := http.StatusOK
	if len(all.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	common.RespondJSON(w, status, all)
}

// GetBlockHistory handles GET /blocks/{blockID}/history?days=N
func (h *ScoreHandler) GetBlockHistory(w http.ResponseWriter, r *http.Request) {
	blockID, ok := h.blockParam(w, r)
	if !ok {
		return
	}
	days, ok := h.daysParam(w, r)
	if !ok {
		return
	}
	h.ask(w, r, queries.GetBlockChangesQuery{BlockID: blockID, Days: days})
}

// GetLatestScore handles GET /subcomponents/{subcomponentID}/latest
func (h *ScoreHandler) GetLatestScore(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subcomponentParam(w, r)
	if !ok {
		return
	}
	h.ask(w, r, queries.GetLatestScoreQuery{SubcomponentID: sub})
}

// GetSubcomponentChanges handles GET /subcomponents/{subcomponentID}/changes?days=N
func (h *ScoreHandler) GetSubcomponentChanges(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subcomponentParam(w, r)
	if !ok {
		return
	}
	days, ok := h.daysParam(w, r)
	if !ok {
		return
	}
	h.ask(w, r, queries.GetSubcomponentChangesQuery{SubcomponentID: sub, Days: days})
}

func (h *ScoreHandler) ask(w http.ResponseWriter, r *http.Request, query querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

func (h *ScoreHandler) blockParam(w http.ResponseWriter, r *http.Request) (valueobjects.BlockID, bool) {
	blockID, err := valueobjects.ParseBlockID(chi.URLParam(r, "blockID"))
	if err != nil {
		h.errs.Handle(w, r, err)
		return valueobjects.BlockID{}, false
	}
	return blockID, true
}

func (h *ScoreHandler) subcomponentParam(w http.ResponseWriter, r *http.Request) (valueobjects.SubcomponentID, bool) {
	sub, err := valueobjects.ParseSubcomponentID(chi.URLParam(r, "subcomponentID"))
	if err != nil {
		h.errs.Handle(w, r, err)
		return valueobjects.SubcomponentID{}, false
	}
	return sub, true
}

// daysParam returns 0 when days is absent so the query applies its default
func (h *ScoreHandler) daysParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	days, ok := common.QueryInt(r, "days", 0)
	if !ok || (r.URL.Query().Has("days") && days < 1) {
		h.errs.Handle(w, r, errors.NewValidationError("days must be a positive integer"))
		return 0, false
	}
	return days, true
}

func (h *ScoreHandler) meta(r *http.Request, result *services.ReconcileResult) *common.MetaInfo {
	meta := &common.MetaInfo{RequestID: middleware.GetReqID(r.Context())}
	if result != nil && result.Warning != nil {
		h.logger.Warn("Reconcile left block inconsistent",
			zap.String("blockID", result.BlockID.String()),
			zap.Error(result.Warning),
		)
		meta.Warning = result.Warning.Error()
	}
	return meta
}
