package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"assessment-backend/infrastructure/persistence/schema"
)

var migrations = []struct {
	version     int
	description string
	up          []string
	down        []string
}{
	{
		version:     1,
		description: "score event log",
		up: []string{
			`CREATE TABLE IF NOT EXISTS score_events (
				id               BIGSERIAL PRIMARY KEY,
				subcomponent_id  TEXT        NOT NULL,
				block_id         INTEGER     NOT NULL,
				overall_score    INTEGER     NOT NULL CHECK (overall_score BETWEEN 0 AND 100),
				dimension_scores JSONB       NOT NULL DEFAULT '{}'::jsonb,
				strengths        TEXT[]      NOT NULL DEFAULT '{}',
				weaknesses       TEXT[]      NOT NULL DEFAULT '{}',
				recommendations  TEXT[]      NOT NULL DEFAULT '{}',
				session_id       TEXT        NOT NULL DEFAULT '',
				actor_id         TEXT        NOT NULL DEFAULT '',
				created_at       TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS score_events_sub_created_idx
				ON score_events (subcomponent_id, created_at DESC, id DESC)`,
		},
		down: []string{`DROP TABLE IF EXISTS score_events`},
	},
	{
		version:     2,
		description: "block aggregate cache",
		up: []string{
			`CREATE TABLE IF NOT EXISTS block_score_cache (
				block_id        INTEGER PRIMARY KEY,
				average_score   INTEGER,
				scored_count    INTEGER     NOT NULL,
				total_count     INTEGER     NOT NULL,
				last_updated_at TIMESTAMPTZ NOT NULL
			)`,
		},
		down: []string{`DROP TABLE IF EXISTS block_score_cache`},
	},
	{
		version:     3,
		description: "block score history",
		up: []string{
			`CREATE TABLE IF NOT EXISTS block_score_history (
				id                     BIGSERIAL PRIMARY KEY,
				block_id               INTEGER     NOT NULL,
				score                  INTEGER,
				scored_count           INTEGER     NOT NULL,
				total_count            INTEGER     NOT NULL,
				trigger_subcomponent   TEXT,
				trigger_event_type     TEXT        NOT NULL,
				change_description     TEXT        NOT NULL,
				created_at             TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS block_score_history_block_idx
				ON block_score_history (block_id, id)`,
		},
		down: []string{`DROP TABLE IF EXISTS block_score_history`},
	},
}

// versionStore records applied migrations in schema_migrations
type versionStore struct {
	db *sql.DB
}

func (v versionStore) EnsureVersionTable(ctx context.Context) error {
	_, err := v.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT        NOT NULL,
		applied_at  TIMESTAMPTZ NOT NULL
	)`)
	return err
}

func (v versionStore) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := v.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	return version, err
}

func (v versionStore) RecordVersion(ctx context.Context, sv schema.SchemaVersion) error {
	_, err := v.db.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)`,
		sv.Version, sv.Description, sv.AppliedAt)
	return err
}

func (v versionStore) RemoveVersion(ctx context.Context, version int) error {
	_, err := v.db.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
	return err
}

// execAll runs statements in one transaction
func execAll(db *sql.DB, statements []string) schema.MigrationFunc {
	return func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					err = fmt.Errorf("%w: %v", err, rerr)
				}
				return err
			}
		}
		return tx.Commit()
	}
}

// NewMigrator returns the schema evolution for the score tables
func (s *Store) NewMigrator() (*schema.SchemaEvolution, error) {
	evo := schema.NewSchemaEvolution(versionStore{db: s.db}, s.logger)
	for _, m := range migrations {
		if err := evo.RegisterMigration(schema.Migration{
			Version:     m.version,
			Description: m.description,
			Up:          execAll(s.db, m.up),
			Down:        execAll(s.db, m.down),
		}); err != nil {
			return nil, err
		}
	}
	return evo, nil
}

// Migrate brings the schema to the latest version
func (s *Store) Migrate(ctx context.Context) (int, error) {
	evo, err := s.NewMigrator()
	if err != nil {
		return 0, err
	}
	return evo.Migrate(ctx, -1)
}
