package services

import (
	"context"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/config"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/events"

	"go.uber.org/zap"
)

// RecordAnalysisResult is the outcome of the full submission pipeline
type RecordAnalysisResult struct {
	Event     entities.ScoreEventView `json:"event"`
	Reconcile *ReconcileResult        `json:"reconcile"`
}

// AnalysisService runs the submission pipeline: persist the score event,
// then reconcile the owning block.
type AnalysisService struct {
	store      ports.ScoreEventStore
	reconciler *Reconciler
	publisher  ports.EventPublisher
	metrics    ports.Metrics
	tracer     ports.Tracer
	domainCfg  *config.DomainConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	store ports.ScoreEventStore,
	reconciler *Reconciler,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	tracer ports.Tracer,
	domainCfg *config.DomainConfig,
	logger *zap.Logger,
) *AnalysisService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if domainCfg == nil {
		domainCfg = config.DefaultDomainConfig()
	}
	return &AnalysisService{
		store:      store,
		reconciler: reconciler,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
		domainCfg:  domainCfg,
		logger:     orNop(logger),
		now:        time.Now,
	}
}

// RecordAnalysis validates and persists a score event and reconciles its
// block. Validation errors are returned before any write. A failed write
// never triggers a reconcile.
func (s *AnalysisService) RecordAnalysis(ctx context.Context, input entities.ScoreEventInput) (*RecordAnalysisResult, error) {
	event, err := entities.NewScoreEvent(input)
	if err != nil {
		return nil, err
	}
	if err := checkBlockInTaxonomy(s.domainCfg, event.BlockID()); err != nil {
		return nil, err
	}

	var saved *entities.ScoreEvent
	err = trace(ctx, s.tracer, "record_score_event", func(ctx context.Context) error {
		var recordErr error
		saved, recordErr = s.store.Record(ctx, event)
		return recordErr
	})
	if err != nil {
		s.logger.Error("Failed to record score event",
			zap.String("subcomponentID", event.SubcomponentID().String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.AnalysisRecorded(saved.BlockID().String())
	s.logger.Info("Analysis recorded",
		zap.Int64("eventID", saved.ID()),
		zap.String("subcomponentID", saved.SubcomponentID().String()),
		zap.Int("overallScore", saved.OverallScore()),
		zap.String("actorID", saved.ActorID()),
	)
	publishBestEffort(ctx, s.publisher, s.logger,
		events.NewAnalysisRecorded(saved.ID(), saved.SubcomponentID(), saved.OverallScore(), saved.ActorID(), saved.SessionID(), s.now()),
	)

	trigger := saved.SubcomponentID()
	reconciled, err := s.reconciler.Reconcile(ctx, saved.BlockID(), &trigger)
	if err != nil {
		return nil, err
	}

	return &RecordAnalysisResult{
		Event:     saved.View(),
		Reconcile: reconciled,
	}, nil
}
