// Package postgres implements the score stores on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/core/aggregates"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	pkgerrors "assessment-backend/pkg/errors"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Store implements ports.Store on database/sql with the lib/pq driver
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ ports.Store = (*Store)(nil)

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return NewStore(db, logger), nil
}

// NewStore wraps an open database handle
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

const eventColumns = `id, subcomponent_id, overall_score, dimension_scores,
	strengths, weaknesses, recommendations, session_id, actor_id, created_at`

// Record appends a score event. Stamped events are never dated before the
// subcomponent's newest event; inserts for one subcomponent are serialized
// with a transaction-scoped advisory lock so the floor holds across
// instances. Backfilled events keep their requested timestamp.
func (s *Store) Record(ctx context.Context, event *entities.ScoreEvent) (*entities.ScoreEvent, error) {
	dims, err := json.Marshal(nonNilDimensions(event.DimensionScores()))
	if err != nil {
		return nil, pkgerrors.NewStorageError("marshal dimension scores", err)
	}

	backfill := event.HasRequestedTimestamp()
	createdAt := event.CreatedAt()
	if !backfill {
		createdAt = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, pkgerrors.NewStorageError("record score event", err)
	}
	defer tx.Rollback()

	subID := event.SubcomponentID().String()
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, subID); err != nil {
		return nil, pkgerrors.NewStorageError("record score event", err)
	}

	var (
		id     int64
		stored time.Time
	)
	err = tx.QueryRowContext(ctx, `
		INSERT INTO score_events (subcomponent_id, block_id, overall_score, dimension_scores,
			strengths, weaknesses, recommendations, session_id, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			CASE WHEN $11::boolean THEN $10::timestamptz
			ELSE GREATEST($10::timestamptz, COALESCE(
				(SELECT max(created_at) FROM score_events WHERE subcomponent_id = $1),
				'-infinity'::timestamptz))
			END)
		RETURNING id, created_at`,
		subID,
		event.BlockID().Number(),
		event.OverallScore(),
		dims,
		pq.Array(nonNilStrings(event.Strengths())),
		pq.Array(nonNilStrings(event.Weaknesses())),
		pq.Array(nonNilStrings(event.Recommendations())),
		event.SessionID(),
		event.ActorID(),
		createdAt,
		backfill,
	).Scan(&id, &stored)
	if err != nil {
		return nil, pkgerrors.NewStorageError("record score event", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, pkgerrors.NewStorageError("record score event", err)
	}
	// created_at comes back at the column's microsecond precision
	return event.WithIdentity(id, stored.UTC()), nil
}

// Latest returns the subcomponent's most recent event
func (s *Store) Latest(ctx context.Context, subcomponentID valueobjects.SubcomponentID) (*entities.ScoreEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM score_events
		WHERE subcomponent_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, subcomponentID.String())

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewStorageError("read latest score event", err)
	}
	return event, nil
}

// ListBySubcomponent returns events at or after since, ascending
func (s *Store) ListBySubcomponent(ctx context.Context, subcomponentID valueobjects.SubcomponentID, since time.Time) ([]*entities.ScoreEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM score_events
		WHERE subcomponent_id = $1 AND created_at >= $2
		ORDER BY created_at ASC, id ASC`, subcomponentID.String(), since.UTC())
	if err != nil {
		return nil, pkgerrors.NewStorageError("list score events", err)
	}
	defer rows.Close()

	out := make([]*entities.ScoreEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, pkgerrors.NewStorageError("list score events", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStorageError("list score events", err)
	}
	return out, nil
}

// LatestBefore returns the event immediately preceding ref
func (s *Store) LatestBefore(ctx context.Context, ref *entities.ScoreEvent) (*entities.ScoreEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM score_events
		WHERE subcomponent_id = $1 AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, ref.SubcomponentID().String(), ref.CreatedAt(), ref.ID())

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewStorageError("read previous score event", err)
	}
	return event, nil
}

// Upsert replaces the block's cached aggregate
func (s *Store) Upsert(ctx context.Context, blockID valueobjects.BlockID, average *int, scoredCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO block_score_cache (block_id, average_score, scored_count, total_count, last_updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (block_id) DO UPDATE SET
			average_score   = EXCLUDED.average_score,
			scored_count    = EXCLUDED.scored_count,
			total_count     = EXCLUDED.total_count,
			last_updated_at = EXCLUDED.last_updated_at`,
		blockID.Number(), nullInt(average), scoredCount, len(blockID.Subcomponents()), s.now().UTC())
	if err != nil {
		return pkgerrors.NewStorageError("upsert block cache", err)
	}
	return nil
}

// Read returns the block's cached aggregate or nil
func (s *Store) Read(ctx context.Context, blockID valueobjects.BlockID) (*aggregates.BlockAggregate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT block_id, average_score, scored_count, total_count, last_updated_at
		FROM block_score_cache
		WHERE block_id = $1`, blockID.Number())

	agg, err := scanAggregate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewStorageError("read block cache", err)
	}
	return agg, nil
}

// List returns every cached aggregate ordered by block number
func (s *Store) List(ctx context.Context) ([]aggregates.BlockAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT block_id, average_score, scored_count, total_count, last_updated_at
		FROM block_score_cache
		ORDER BY block_id`)
	if err != nil {
		return nil, pkgerrors.NewStorageError("list block cache", err)
	}
	defer rows.Close()

	out := make([]aggregates.BlockAggregate, 0)
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, pkgerrors.NewStorageError("list block cache", err)
		}
		out = append(out, *agg)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStorageError("list block cache", err)
	}
	return out, nil
}

const historyColumns = `id, block_id, score, scored_count, total_count,
	trigger_subcomponent, trigger_event_type, change_description, created_at`

// Append stores a history snapshot
func (s *Store) Append(ctx context.Context, snapshot *entities.BlockHistorySnapshot) (*entities.BlockHistorySnapshot, error) {
	saved := *snapshot
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = s.now().UTC()
	}

	var trigger sql.NullString
	if saved.TriggerSubcomponentID != nil {
		trigger = sql.NullString{String: saved.TriggerSubcomponentID.String(), Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO block_score_history (block_id, score, scored_count, total_count,
			trigger_subcomponent, trigger_event_type, change_description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		saved.BlockID.Number(), nullInt(saved.Score), saved.ScoredCount, saved.TotalCount,
		trigger, saved.TriggerEventType, saved.ChangeDescription, saved.CreatedAt,
	).Scan(&saved.ID)
	if err != nil {
		return nil, pkgerrors.NewStorageError("append history snapshot", err)
	}
	return &saved, nil
}

// ListSince returns the block's snapshots at or after since, ascending by id
func (s *Store) ListSince(ctx context.Context, blockID valueobjects.BlockID, since time.Time) ([]*entities.BlockHistorySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM block_score_history
		WHERE block_id = $1 AND created_at >= $2
		ORDER BY id ASC`, blockID.Number(), since.UTC())
	if err != nil {
		return nil, pkgerrors.NewStorageError("list history snapshots", err)
	}
	defer rows.Close()

	out := make([]*entities.BlockHistorySnapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, pkgerrors.NewStorageError("list history snapshots", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStorageError("list history snapshots", err)
	}
	return out, nil
}

// PreviousBefore returns the block's snapshot with the greatest id below id
func (s *Store) PreviousBefore(ctx context.Context, blockID valueobjects.BlockID, id int64) (*entities.BlockHistorySnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM block_score_history
		WHERE block_id = $1 AND id < $2
		ORDER BY id DESC
		LIMIT 1`, blockID.Number(), id)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewStorageError("read previous history snapshot", err)
	}
	return snap, nil
}

// Ping implements ports.Store
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return pkgerrors.NewStorageError("ping", err)
	}
	return nil
}

// Close implements ports.Store
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*entities.ScoreEvent, error) {
	var (
		id        int64
		sub       string
		overall   int
		dims      []byte
		sessionID string
		actorID   string
		createdAt time.Time
	)
	var strengths, weaknesses, recommendations []string
	if err := row.Scan(&id, &sub, &overall, &dims,
		pq.Array(&strengths), pq.Array(&weaknesses), pq.Array(&recommendations),
		&sessionID, &actorID, &createdAt); err != nil {
		return nil, err
	}

	subID, err := valueobjects.ParseSubcomponentID(sub)
	if err != nil {
		return nil, fmt.Errorf("corrupt score event %d: %w", id, err)
	}
	var dimensions map[string]int
	if len(dims) > 0 {
		if err := json.Unmarshal(dims, &dimensions); err != nil {
			return nil, fmt.Errorf("corrupt dimension scores on event %d: %w", id, err)
		}
	}
	return entities.ReconstructScoreEvent(id, subID, overall, dimensions,
		strengths, weaknesses, recommendations, sessionID, actorID, createdAt.UTC()), nil
}

func scanAggregate(row scanner) (*aggregates.BlockAggregate, error) {
	var (
		block       int
		average     sql.NullInt64
		scored      int
		total       int
		lastUpdated time.Time
	)
	if err := row.Scan(&block, &average, &scored, &total, &lastUpdated); err != nil {
		return nil, err
	}
	blockID, err := valueobjects.NewBlockID(block)
	if err != nil {
		return nil, err
	}
	return &aggregates.BlockAggregate{
		BlockID:       blockID,
		AverageScore:  intFromNull(average),
		ScoredCount:   scored,
		TotalCount:    total,
		LastUpdatedAt: lastUpdated.UTC(),
	}, nil
}

func scanSnapshot(row scanner) (*entities.BlockHistorySnapshot, error) {
	var (
		snap      entities.BlockHistorySnapshot
		block     int
		score     sql.NullInt64
		trigger   sql.NullString
		createdAt time.Time
	)
	if err := row.Scan(&snap.ID, &block, &score, &snap.ScoredCount, &snap.TotalCount,
		&trigger, &snap.TriggerEventType, &snap.ChangeDescription, &createdAt); err != nil {
		return nil, err
	}
	blockID, err := valueobjects.NewBlockID(block)
	if err != nil {
		return nil, err
	}
	snap.BlockID = blockID
	snap.Score = intFromNull(score)
	snap.CreatedAt = createdAt.UTC()
	if trigger.Valid {
		sub, err := valueobjects.ParseSubcomponentID(trigger.String)
		if err != nil {
			return nil, err
		}
		snap.TriggerSubcomponentID = &sub
	}
	return &snap, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilDimensions(in map[string]int) map[string]int {
	if in == nil {
		return map[string]int{}
	}
	return in
}
