package services

import (
	"context"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/config"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	domainservices "assessment-backend/domain/services"
	"assessment-backend/pkg/errors"
	"assessment-backend/pkg/utils"
)

// ChangeLogReader reads change trails. It never writes.
type ChangeLogReader struct {
	history   ports.HistoryStore
	events    ports.ScoreEventStore
	domainCfg *config.DomainConfig
	now       func() time.Time
}

// NewChangeLogReader creates a new change log reader
func NewChangeLogReader(history ports.HistoryStore, events ports.ScoreEventStore, domainCfg *config.DomainConfig) *ChangeLogReader {
	if domainCfg == nil {
		domainCfg = config.DefaultDomainConfig()
	}
	return &ChangeLogReader{
		history:   history,
		events:    events,
		domainCfg: domainCfg,
		now:       time.Now,
	}
}

// Changes returns the block's snapshots from the last withinDays days, each
// paired with its predecessor, most recent first.
func (r *ChangeLogReader) Changes(ctx context.Context, blockID valueobjects.BlockID, withinDays int) ([]domainservices.ChangeEvent, error) {
	if err := checkBlockInTaxonomy(r.domainCfg, blockID); err != nil {
		return nil, err
	}
	since, err := r.windowStart(withinDays)
	if err != nil {
		return nil, err
	}

	snapshots, err := r.history.ListSince(ctx, blockID, since)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return []domainservices.ChangeEvent{}, nil
	}

	oldest := snapshots[0].ID
	for _, s := range snapshots[1:] {
		if s.ID < oldest {
			oldest = s.ID
		}
	}
	predecessor, err := r.history.PreviousBefore(ctx, blockID, oldest)
	if err != nil {
		return nil, err
	}

	return domainservices.PairSnapshots(snapshots, predecessor), nil
}

// SubcomponentChanges returns the subcomponent's score events from the last
// withinDays days paired with their predecessors, most recent first.
func (r *ChangeLogReader) SubcomponentChanges(ctx context.Context, subcomponentID valueobjects.SubcomponentID, withinDays int) ([]domainservices.ScoreChange, error) {
	events, err := r.SubcomponentHistory(ctx, subcomponentID, withinDays)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []domainservices.ScoreChange{}, nil
	}

	predecessor, err := r.events.LatestBefore(ctx, events[0])
	if err != nil {
		return nil, err
	}
	return domainservices.PairScoreEvents(events, predecessor), nil
}

// SubcomponentHistory returns the subcomponent's events from the last
// withinDays days, oldest first.
func (r *ChangeLogReader) SubcomponentHistory(ctx context.Context, subcomponentID valueobjects.SubcomponentID, withinDays int) ([]*entities.ScoreEvent, error) {
	if err := checkBlockInTaxonomy(r.domainCfg, subcomponentID.Block()); err != nil {
		return nil, err
	}
	since, err := r.windowStart(withinDays)
	if err != nil {
		return nil, err
	}
	return r.events.ListBySubcomponent(ctx, subcomponentID, since)
}

// DimensionChanges compares two dimension maps; see domain services.
func (r *ChangeLogReader) DimensionChanges(current, previous map[string]int) map[string]domainservices.DimensionChange {
	return domainservices.DimensionChanges(current, previous)
}

func (r *ChangeLogReader) windowStart(withinDays int) (time.Time, error) {
	if withinDays < 1 {
		return time.Time{}, errors.NewValidationError("withinDays must be at least 1")
	}
	if withinDays > r.domainCfg.MaxHistoryDays {
		withinDays = r.domainCfg.MaxHistoryDays
	}
	return utils.WindowStart(r.now(), withinDays), nil
}
