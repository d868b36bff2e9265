// Package schema applies ordered, versioned migrations to a relational store.
package schema

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// SchemaVersion represents an applied migration
type SchemaVersion struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
}

// MigrationFunc performs one direction of a migration
type MigrationFunc func(ctx context.Context) error

// Migration moves the schema from Version-1 to Version
type Migration struct {
	Version     int
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// VersionStore persists which migrations have been applied
type VersionStore interface {
	EnsureVersionTable(ctx context.Context) error
	CurrentVersion(ctx context.Context) (int, error)
	RecordVersion(ctx context.Context, v SchemaVersion) error
	RemoveVersion(ctx context.Context, version int) error
}

// SchemaEvolution manages schema evolution
type SchemaEvolution struct {
	store      VersionStore
	migrations []Migration
	logger     *zap.Logger
	now        func() time.Time
}

// NewSchemaEvolution creates a new schema evolution manager
func NewSchemaEvolution(store VersionStore, logger *zap.Logger) *SchemaEvolution {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaEvolution{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// RegisterMigration registers a new migration
func (s *SchemaEvolution) RegisterMigration(migration Migration) error {
	if migration.Version < 1 {
		return fmt.Errorf("invalid migration: version must be positive")
	}
	if migration.Up == nil {
		return fmt.Errorf("invalid migration %d: missing up step", migration.Version)
	}
	for _, existing := range s.migrations {
		if existing.Version == migration.Version {
			return fmt.Errorf("migration %d already exists", migration.Version)
		}
	}

	s.migrations = append(s.migrations, migration)
	sort.Slice(s.migrations, func(i, j int) bool { return s.migrations[i].Version < s.migrations[j].Version })
	return nil
}

// LatestVersion returns the highest registered version
func (s *SchemaEvolution) LatestVersion() int {
	if len(s.migrations) == 0 {
		return 0
	}
	return s.migrations[len(s.migrations)-1].Version
}

// Migrate upgrades or rolls back to targetVersion. A negative target means
// the latest registered version.
func (s *SchemaEvolution) Migrate(ctx context.Context, targetVersion int) (int, error) {
	if err := s.store.EnsureVersionTable(ctx); err != nil {
		return 0, fmt.Errorf("prepare schema version table: %w", err)
	}
	current, err := s.store.CurrentVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if targetVersion < 0 {
		targetVersion = s.LatestVersion()
	}

	switch {
	case targetVersion == current:
		return current, nil
	case targetVersion < current:
		return s.rollback(ctx, current, targetVersion)
	default:
		return s.upgrade(ctx, current, targetVersion)
	}
}

func (s *SchemaEvolution) upgrade(ctx context.Context, current, target int) (int, error) {
	for current < target {
		migration := s.find(current + 1)
		if migration == nil {
			return current, fmt.Errorf("no migration found from version %d to %d", current, current+1)
		}
		if err := migration.Up(ctx); err != nil {
			return current, fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := s.store.RecordVersion(ctx, SchemaVersion{
			Version:     migration.Version,
			Description: migration.Description,
			AppliedAt:   s.now().UTC(),
		}); err != nil {
			return current, fmt.Errorf("record migration %d: %w", migration.Version, err)
		}

		s.logger.Info("Applied migration",
			zap.Int("version", migration.Version),
			zap.String("description", migration.Description),
		)
		current = migration.Version
	}
	return current, nil
}

func (s *SchemaEvolution) rollback(ctx context.Context, current, target int) (int, error) {
	for current > target {
		migration := s.find(current)
		if migration == nil {
			return current, fmt.Errorf("no rollback found from version %d", current)
		}
		if migration.Down == nil {
			return current, fmt.Errorf("migration %d does not support rollback", migration.Version)
		}
		if err := migration.Down(ctx); err != nil {
			return current, fmt.Errorf("rollback %d failed: %w", migration.Version, err)
		}
		if err := s.store.RemoveVersion(ctx, migration.Version); err != nil {
			return current, fmt.Errorf("remove migration %d: %w", migration.Version, err)
		}

		s.logger.Info("Rolled back migration", zap.Int("version", migration.Version))
		current = migration.Version - 1
	}
	return current, nil
}

func (s *SchemaEvolution) find(version int) *Migration {
	for i := range s.migrations {
		if s.migrations[i].Version == version {
			return &s.migrations[i]
		}
	}
	return nil
}
