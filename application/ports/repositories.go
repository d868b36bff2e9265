package ports

import (
	"context"
	"time"

	"assessment-backend/domain/core/aggregates"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/domain/events"
)

// ScoreEventStore is the append-only log of scoring events.
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type ScoreEventStore interface {
	// Record persists a new event and returns it with its id and createdAt
	// assigned. Events are never updated or deleted afterwards.
	Record(ctx context.Context, event *entities.ScoreEvent) (*entities.ScoreEvent, error)

	// Latest returns the event with the greatest (createdAt, id) for a
	// subcomponent, or nil when the subcomponent was never scored.
	Latest(ctx context.Context, subcomponentID valueobjects.SubcomponentID) (*entities.ScoreEvent, error)

	// ListBySubcomponent returns events created at or after since,
	// ascending by (createdAt, id).
	ListBySubcomponent(ctx context.Context, subcomponentID valueobjects.SubcomponentID, since time.Time) ([]*entities.ScoreEvent, error)

	// LatestBefore returns the event immediately preceding ref in
	// (createdAt, id) order, or nil.
	LatestBefore(ctx context.Context, ref *entities.ScoreEvent) (*entities.ScoreEvent, error)
}

// AggregateCache holds exactly one current aggregate row per block
type AggregateCache interface {
	// Upsert inserts or replaces the block row and stamps lastUpdatedAt
	Upsert(ctx context.Context, blockID valueobjects.BlockID, average *int, scoredCount int) error

	// Read returns the cached row, or nil when the block was never reconciled
	Read(ctx context.Context, blockID valueobjects.BlockID) (*aggregates.BlockAggregate, error)

	// List returns every cached row ordered by block number
	List(ctx context.Context) ([]aggregates.BlockAggregate, error)
}

// HistoryStore is the append-only change trail of block aggregates
type HistoryStore interface {
	// Append persists a snapshot and returns it with its id assigned
	Append(ctx context.Context, snapshot *entities.BlockHistorySnapshot) (*entities.BlockHistorySnapshot, error)

	// ListSince returns the block's snapshots created at or after since,
	// ascending by id.
	ListSince(ctx context.Context, blockID valueobjects.BlockID, since time.Time) ([]*entities.BlockHistorySnapshot, error)

	// PreviousBefore returns the block's snapshot with the greatest id lower
	// than id, or nil.
	PreviousBefore(ctx context.Context, blockID valueobjects.BlockID, id int64) (*entities.BlockHistorySnapshot, error)
}

// Store is a storage handle serving all three persistence ports.
// It is opened once at startup and closed on shutdown.
type Store interface {
	ScoreEventStore
	AggregateCache
	HistoryStore

	// Ping checks the backing store is reachable
	Ping(ctx context.Context) error

	// Close releases the underlying connections
	Close() error
}

// EventPublisher publishes domain events to external subscribers
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// BlockLocker serializes reconciles of one block.
// The returned release function must be called exactly once.
type BlockLocker interface {
	LockBlock(ctx context.Context, blockID valueobjects.BlockID) (release func(context.Context) error, err error)
}

// Metrics records business and storage metrics
type Metrics interface {
	AnalysisRecorded(blockID string)
	ReconcileCompleted(changed bool, duration time.Duration)
	HistoryAppended(blockID string)
	HistoryGap(blockID string)
	StoreOperation(operation string, duration time.Duration, err error)
}

// Tracer wraps a unit of work in a trace span
type Tracer interface {
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
}
