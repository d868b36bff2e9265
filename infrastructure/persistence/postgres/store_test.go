package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	pkgerrors "assessment-backend/pkg/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T, now time.Time) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db, zap.NewNop())
	store.now = func() time.Time { return now }
	return store, mock
}

var eventRowColumns = []string{"id", "subcomponent_id", "overall_score", "dimension_scores",
	"strengths", "weaknesses", "recommendations", "session_id", "actor_id", "created_at"}

func TestRecordReturnsGeneratedIDAndStoredTime(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 123456789, time.UTC)
	store, mock := newMockStore(t, now)
	stored := now.Truncate(time.Microsecond)

	event, err := entities.NewScoreEvent(entities.ScoreEventInput{
		SubcomponentID:  "2-4",
		OverallScore:    77,
		DimensionScores: map[string]int{"clarity": 80},
		Strengths:       []string{"clear"},
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("2-4").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO score_events .* GREATEST\(\$10::timestamptz, .* RETURNING id, created_at`).
		WithArgs("2-4", 2, 77, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "", "", now, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), stored))
	mock.ExpectCommit()

	saved, err := store.Record(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, int64(42), saved.ID())
	assert.Equal(t, stored, saved.CreatedAt())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordKeepsCreatedAtNonDecreasingWhenClockStepsBack(t *testing.T) {
	first := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	store, mock := newMockStore(t, first.Add(-time.Second))

	event, err := entities.NewScoreEvent(entities.ScoreEventInput{SubcomponentID: "1-1", OverallScore: 60})
	require.NoError(t, err)

	// the database floors the stamp at the subcomponent's newest created_at
	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs("1-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO score_events`).
		WithArgs("1-1", 1, 60, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "", "", first.Add(-time.Second), false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), first))
	mock.ExpectCommit()

	saved, err := store.Record(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, saved.CreatedAt().Before(first))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordBackfillKeepsRequestedTimestamp(t *testing.T) {
	store, mock := newMockStore(t, time.Now())
	at := time.Date(2025, 12, 24, 8, 0, 0, 0, time.UTC)

	event, err := entities.NewScoreEvent(entities.ScoreEventInput{SubcomponentID: "1-2", OverallScore: 40, CreatedAt: at})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs("1-2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO score_events`).
		WithArgs("1-2", 1, 40, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "", "", at, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), at))
	mock.ExpectCommit()

	saved, err := store.Record(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, at, saved.CreatedAt())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailureIsStorageError(t *testing.T) {
	store, mock := newMockStore(t, time.Now())
	event, err := entities.NewScoreEvent(entities.ScoreEventInput{SubcomponentID: "1-1", OverallScore: 10})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO score_events`).WillReturnError(stderrors.New("connection refused"))
	mock.ExpectRollback()

	_, err = store.Record(context.Background(), event)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStorage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestScansEvent(t *testing.T) {
	store, mock := newMockStore(t, time.Now())
	createdAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM score_events\s+WHERE subcomponent_id = \$1\s+ORDER BY created_at DESC, id DESC`).
		WithArgs("3-2").
		WillReturnRows(sqlmock.NewRows(eventRowColumns).
			AddRow(int64(9), "3-2", 64, []byte(`{"depth":70}`), "{strong,focused}", "{}", "{}", "s1", "u1", createdAt))

	latest, err := store.Latest(context.Background(), valueobjects.MustSubcomponentID("3-2"))
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(9), latest.ID())
	assert.Equal(t, 64, latest.OverallScore())
	assert.Equal(t, map[string]int{"depth": 70}, latest.DimensionScores())
	assert.Equal(t, []string{"strong", "focused"}, latest.Strengths())
	assert.Equal(t, "u1", latest.ActorID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestNeverScored(t *testing.T) {
	store, mock := newMockStore(t, time.Now())
	mock.ExpectQuery(`FROM score_events`).WillReturnRows(sqlmock.NewRows(eventRowColumns))

	latest, err := store.Latest(context.Background(), valueobjects.MustSubcomponentID("3-2"))
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestUpsertWritesNullAverage(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	store, mock := newMockStore(t, now)

	mock.ExpectExec(`INSERT INTO block_score_cache .* ON CONFLICT \(block_id\) DO UPDATE`).
		WithArgs(5, sql.NullInt64{}, 0, 6, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Upsert(context.Background(), valueobjects.MustBlockID(5), nil, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadAndListCache(t *testing.T) {
	store, mock := newMockStore(t, time.Now())
	updated := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	cols := []string{"block_id", "average_score", "scored_count", "total_count", "last_updated_at"}

	mock.ExpectQuery(`FROM block_score_cache\s+WHERE block_id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, int64(78), 3, 6, updated))
	mock.ExpectQuery(`FROM block_score_cache\s+ORDER BY block_id`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, int64(78), 3, 6, updated).
			AddRow(2, nil, 0, 6, updated))

	row, err := store.Read(context.Background(), valueobjects.MustBlockID(1))
	require.NoError(t, err)
	require.NotNil(t, row.AverageScore)
	assert.Equal(t, 78, *row.AverageScore)

	rows, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[1].AverageScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAndPreviousBefore(t *testing.T) {
	now := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	store, mock := newMockStore(t, now)
	trigger := valueobjects.MustSubcomponentID("1-3")
	snap := entities.NewBlockHistorySnapshot(valueobjects.MustBlockID(1), valueobjects.IntPtr(80), 2, valueobjects.IntPtr(70), &trigger, now)

	mock.ExpectQuery(`INSERT INTO block_score_history`).
		WithArgs(1, sql.NullInt64{Int64: 80, Valid: true}, 2, 6,
			sql.NullString{String: "1-3", Valid: true}, "analysis_completed", snap.ChangeDescription, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

	saved, err := store.Append(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, int64(12), saved.ID)

	cols := []string{"id", "block_id", "score", "scored_count", "total_count",
		"trigger_subcomponent", "trigger_event_type", "change_description", "created_at"}
	mock.ExpectQuery(`FROM block_score_history\s+WHERE block_id = \$1 AND id < \$2`).
		WithArgs(1, int64(12)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(7), 1, nil, 0, 6, nil, "analysis_completed", "Block score recalculated: N/A%", now))

	prev, err := store.PreviousBefore(context.Background(), valueobjects.MustBlockID(1), 12)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, int64(7), prev.ID)
	assert.Nil(t, prev.Score)
	assert.Nil(t, prev.TriggerSubcomponentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesPendingVersions(t *testing.T) {
	store, mock := newMockStore(t, time.Now())

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(2))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS block_score_history`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS block_score_history_block_idx`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs(3, "block score history", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	version, err := store.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
