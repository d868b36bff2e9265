// Package memory provides an in-process Store for tests and local development.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/core/aggregates"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	pkgerrors "assessment-backend/pkg/errors"
)

var errClosed = errors.New("memory store is closed")

// Store keeps score events, cached aggregates and history in memory.
// All operations are safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	events        []*entities.ScoreEvent
	nextEventID   int64
	lastCreatedAt time.Time

	cache map[int]aggregates.BlockAggregate

	history       []*entities.BlockHistorySnapshot
	nextHistoryID int64

	now    func() time.Time
	closed bool
}

var _ ports.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used to stamp rows
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		cache: make(map[int]aggregates.BlockAggregate),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends a score event. Events without a requested timestamp are
// stamped with the clock, never earlier than the previous insertion.
func (s *Store) Record(ctx context.Context, event *entities.ScoreEvent) (*entities.ScoreEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.NewStorageError("record score event", errClosed)
	}

	createdAt := event.CreatedAt()
	if !event.HasRequestedTimestamp() {
		createdAt = s.now().UTC()
		if createdAt.Before(s.lastCreatedAt) {
			createdAt = s.lastCreatedAt
		}
		s.lastCreatedAt = createdAt
	}

	s.nextEventID++
	saved := event.WithIdentity(s.nextEventID, createdAt)
	s.events = append(s.events, saved)
	return saved, nil
}

// Latest returns the subcomponent's event with the greatest (createdAt, id)
func (s *Store) Latest(ctx context.Context, subcomponentID valueobjects.SubcomponentID) (*entities.ScoreEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, pkgerrors.NewStorageError("read latest score event", errClosed)
	}

	var latest *entities.ScoreEvent
	for _, e := range s.events {
		if e.SubcomponentID() == subcomponentID && e.After(latest) {
			latest = e
		}
	}
	return latest, nil
}

// ListBySubcomponent returns events at or after since, ascending
func (s *Store) ListBySubcomponent(ctx context.Context, subcomponentID valueobjects.SubcomponentID, since time.Time) ([]*entities.ScoreEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, pkgerrors.NewStorageError("list score events", errClosed)
	}

	out := make([]*entities.ScoreEvent, 0)
	for _, e := range s.events {
		if e.SubcomponentID() == subcomponentID && !e.CreatedAt().Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].After(out[i]) })
	return out, nil
}

// LatestBefore returns the event immediately preceding ref
func (s *Store) LatestBefore(ctx context.Context, ref *entities.ScoreEvent) (*entities.ScoreEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, pkgerrors.NewStorageError("read previous score event", errClosed)
	}

	var best *entities.ScoreEvent
	for _, e := range s.events {
		if e.SubcomponentID() != ref.SubcomponentID() || !ref.After(e) {
			continue
		}
		if e.After(best) {
			best = e
		}
	}
	return best, nil
}

// Upsert replaces the block's cached row
func (s *Store) Upsert(ctx context.Context, blockID valueobjects.BlockID, average *int, scoredCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pkgerrors.NewStorageError("upsert block cache", errClosed)
	}

	s.cache[blockID.Number()] = aggregates.AggregateResult{
		BlockID:     blockID,
		Average:     copyInt(average),
		ScoredCount: scoredCount,
		TotalCount:  len(blockID.Subcomponents()),
	}.ToCache(s.now())
	return nil
}

// Read returns the block's cached row or nil
func (s *Store) Read(ctx context.Context, blockID valueobjects.BlockID) (*aggregates.BlockAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, pkgerrors.NewStorageError("read block cache", errClosed)
	}

	row, ok := s.cache[blockID.Number()]
	if !ok {
		return nil, nil
	}
	row.AverageScore = copyInt(row.AverageScore)
	return &row, nil
}

// List returns every cached row ordered by block number
func (s *Store) List(ctx context.Context) ([]aggregates.BlockAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, pkgerrors.NewStorageError("list block cache", errClosed)
	}

	out := make([]aggregates.BlockAggregate, 0, len(s.cache))
	for _, row := range s.cache {
		row.AverageScore = copyInt(row.AverageScore)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockID.Number() < out[j].BlockID.Number() })
	return out, nil
}

// Append stores a history snapshot with the next id
func (s *Store) Append(ctx context.Context, snapshot *entities.BlockHistorySnapshot) (*entities.BlockHistorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.NewStorageError("append history snapshot", errClosed)
	}

	s.nextHistoryID++
	saved := *snapshot
	saved.ID = s.nextHistoryID
	saved.Score = copyInt(snapshot.Score)
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = s.now().UTC()
	}
	s.history = append(s.history, &saved)

	out := saved
	return &out, nil
}

// ListSince returns the block's snapshots at or after since, ascending by id
func (s *Store) ListSince(ctx context.Context, blockID valueobjects.BlockID, since time.Time) ([]*entities.BlockHistorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, pkgerrors.NewStorageError("list history snapshots", errClosed)
	}

	out := make([]*entities.BlockHistorySnapshot, 0)
	for _, snap := range s.history {
		if snap.BlockID == blockID && !snap.CreatedAt.Before(since) {
			c := *snap
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PreviousBefore returns the block's snapshot with the greatest id below id
func (s *Store) PreviousBefore(ctx context.Context, blockID valueobjects.BlockID, id int64) (*entities.BlockHistorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, pkgerrors.NewStorageError("read previous history snapshot", errClosed)
	}

	var best *entities.BlockHistorySnapshot
	for _, snap := range s.history {
		if snap.BlockID != blockID || snap.ID >= id {
			continue
		}
		if best == nil || snap.ID > best.ID {
			best = snap
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

// Ping implements ports.Store
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return pkgerrors.NewStorageError("ping", errClosed)
	}
	return nil
}

// Close implements ports.Store
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
