package services

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/config"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/domain/events"
	"assessment-backend/infrastructure/persistence/memory"
	pkgerrors "assessment-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *recordingPublisher) PublishBatch(_ context.Context, evts []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}

type failingHistory struct {
	*memory.Store
	err error
}

func (f failingHistory) Append(context.Context, *entities.BlockHistorySnapshot) (*entities.BlockHistorySnapshot, error) {
	return nil, f.err
}

type failingCache struct {
	*memory.Store
	err error
}

func (f failingCache) Upsert(context.Context, valueobjects.BlockID, *int, int) error {
	return f.err
}

type failingRecorder struct {
	*memory.Store
	err error
}

func (f failingRecorder) Record(context.Context, *entities.ScoreEvent) (*entities.ScoreEvent, error) {
	return nil, f.err
}

type pipeline struct {
	store      *memory.Store
	reconciler *Reconciler
	analysis   *AnalysisService
	reader     *ChangeLogReader
	publisher  *recordingPublisher
	logs       *observer.ObservedLogs
}

type pipelineOptions struct {
	events  ports.ScoreEventStore
	cache   ports.AggregateCache
	history ports.HistoryStore
	locker  ports.BlockLocker
}

func newPipeline(t *testing.T, configure func(store *memory.Store, o *pipelineOptions)) *pipeline {
	t.Helper()
	store := memory.NewStore()
	opts := &pipelineOptions{events: store, cache: store, history: store}
	if configure != nil {
		configure(store, opts)
	}

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	publisher := &recordingPublisher{}
	cfg := config.DefaultDomainConfig()

	aggregator := NewBlockAggregator(NewLatestScoreResolver(opts.events))
	reconciler := NewReconciler(aggregator, opts.cache, opts.history, opts.locker, publisher, nil, nil, cfg, logger)

	return &pipeline{
		store:      store,
		reconciler: reconciler,
		analysis:   NewAnalysisService(opts.events, reconciler, publisher, nil, nil, cfg, logger),
		reader:     NewChangeLogReader(opts.history, opts.events, cfg),
		publisher:  publisher,
		logs:       logs,
	}
}

func (p *pipeline) record(t *testing.T, sub string, score int) *RecordAnalysisResult {
	t.Helper()
	res, err := p.analysis.RecordAnalysis(context.Background(), entities.ScoreEventInput{SubcomponentID: sub, OverallScore: score})
	require.NoError(t, err)
	return res
}

func (p *pipeline) historyCount(t *testing.T, block int) int {
	t.Helper()
	snaps, err := p.store.ListSince(context.Background(), valueobjects.MustBlockID(block), time.Time{})
	require.NoError(t, err)
	return len(snaps)
}

func TestScenarioA_EmptyBlock(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()
	block := valueobjects.MustBlockID(1)

	agg, err := p.reconciler.aggregator.Aggregate(ctx, block)
	require.NoError(t, err)
	assert.Nil(t, agg.Average)
	assert.Equal(t, 0, agg.ScoredCount)

	res, err := p.reconciler.Reconcile(ctx, block, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, p.historyCount(t, 1))

	row, err := p.store.Read(ctx, block)
	require.NoError(t, err)
	require.NotNil(t, row, "reconcile creates the cache row")
	assert.Nil(t, row.AverageScore)
}

func TestScenarioB_FirstScore(t *testing.T) {
	p := newPipeline(t, nil)

	res := p.record(t, "1-1", 80)
	require.NotNil(t, res.Reconcile)
	assert.True(t, res.Reconcile.Changed)
	assert.True(t, res.Reconcile.HistoryRecorded)
	assert.Nil(t, res.Reconcile.PreviousAverage)
	assert.Equal(t, 80, *res.Reconcile.Average)
	assert.Equal(t, 1, res.Reconcile.ScoredCount)

	snaps, err := p.store.ListSince(context.Background(), valueobjects.MustBlockID(1), time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "Score updated from N/A% to 80% after 1-1 analysis", snaps[0].ChangeDescription)
	assert.Equal(t, "analysis_completed", snaps[0].TriggerEventType)
	assert.Equal(t, "1-1", snaps[0].TriggerSubcomponentID.String())

	assert.Equal(t, []string{events.TypeAnalysisRecorded, events.TypeBlockScoreChanged}, p.publisher.types())
}

func TestScenarioC_AndD_FullBlockAndRescore(t *testing.T) {
	p := newPipeline(t, nil)
	for i, score := range []int{80, 70, 90, 60, 100, 50} {
		p.record(t, valueobjects.MustBlockID(1).Subcomponents()[i].String(), score)
	}

	agg, err := p.reconciler.aggregator.Aggregate(context.Background(), valueobjects.MustBlockID(1))
	require.NoError(t, err)
	assert.Equal(t, 75, *agg.Average)
	assert.Equal(t, 6, agg.ScoredCount)

	before := p.historyCount(t, 1)
	res := p.record(t, "1-1", 80)
	assert.False(t, res.Reconcile.Changed)
	assert.Equal(t, 75, *res.Reconcile.Average)
	assert.Equal(t, before, p.historyCount(t, 1), "same average appends no snapshot")

	all, err := p.store.ListBySubcomponent(context.Background(), valueobjects.MustSubcomponentID("1-1"), time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "the analysis event itself is still recorded")
}

func TestScenarioE_ChangeLog(t *testing.T) {
	p := newPipeline(t, nil)
	p.record(t, "1-1", 75) // N/A -> 75
	p.record(t, "1-2", 81) // 75 -> 78
	p.record(t, "1-3", 66) // 78 -> 74

	changes, err := p.reader.Changes(context.Background(), valueobjects.MustBlockID(1), 30)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, 74, *changes[0].Score)
	assert.Equal(t, -4, changes[0].Improvement)
	assert.Equal(t, 78, *changes[1].Score)
	assert.Equal(t, 3, changes[1].Improvement)
	assert.Equal(t, 75, *changes[2].Score)
	assert.Equal(t, 0, changes[2].Improvement)
	assert.Greater(t, changes[0].SnapshotID, changes[1].SnapshotID)
}

func TestChangesWindowKeepsPredecessorOutsideWindow(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()
	block := valueobjects.MustBlockID(2)

	_, err := p.store.Append(ctx, &entities.BlockHistorySnapshot{BlockID: block, Score: valueobjects.IntPtr(50), CreatedAt: time.Now().Add(-60 * 24 * time.Hour)})
	require.NoError(t, err)
	_, err = p.store.Append(ctx, &entities.BlockHistorySnapshot{BlockID: block, Score: valueobjects.IntPtr(58), CreatedAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	changes, err := p.reader.Changes(ctx, block, 30)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, 8, changes[0].Improvement)

	_, err = p.reader.Changes(ctx, block, 0)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestReconcileIsIdempotent(t *testing.T) {
	p := newPipeline(t, nil)
	p.record(t, "3-1", 42)
	block := valueobjects.MustBlockID(3)

	first, err := p.reconciler.Reconcile(context.Background(), block, nil)
	require.NoError(t, err)
	second, err := p.reconciler.Reconcile(context.Background(), block, nil)
	require.NoError(t, err)

	assert.False(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Average, second.Average)
	assert.Equal(t, 1, p.historyCount(t, 3))
}

func TestValueToNullIsAChange(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()
	block := valueobjects.MustBlockID(4)
	require.NoError(t, p.store.Upsert(ctx, block, valueobjects.IntPtr(50), 1))

	res, err := p.reconciler.Reconcile(ctx, block, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Nil(t, res.Average)
	assert.Equal(t, 50, *res.PreviousAverage)

	snaps, err := p.store.ListSince(ctx, block, time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Nil(t, snaps[0].Score)
	assert.Equal(t, "Block score recalculated: N/A%", snaps[0].ChangeDescription)
	assert.Nil(t, snaps[0].TriggerSubcomponentID)
}

func TestLatestWinsOnTimestampTie(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, score := range []int{30, 90} {
		_, err := p.analysis.RecordAnalysis(ctx, entities.ScoreEventInput{SubcomponentID: "5-1", OverallScore: score, CreatedAt: ts})
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		agg, err := p.reconciler.aggregator.Aggregate(ctx, valueobjects.MustBlockID(5))
		require.NoError(t, err)
		assert.Equal(t, 90, *agg.Average)
	}
}

func TestHistoryFailureIsSoft(t *testing.T) {
	appendErr := pkgerrors.NewStorageError("append history snapshot", stderrors.New("throttled"))
	p := newPipeline(t, func(store *memory.Store, o *pipelineOptions) {
		o.history = failingHistory{Store: store, err: appendErr}
	})

	res := p.record(t, "6-2", 88)
	rec := res.Reconcile
	assert.True(t, rec.Changed)
	assert.False(t, rec.HistoryRecorded)
	assert.True(t, rec.HistoryMissing())
	require.NotNil(t, rec.Warning)
	assert.ErrorIs(t, rec.Warning, appendErr)

	row, err := p.store.Read(context.Background(), valueobjects.MustBlockID(6))
	require.NoError(t, err)
	assert.Equal(t, 88, *row.AverageScore, "cache upsert is not rolled back")

	logged := p.logs.FilterMessage("history append failed after cache upsert").All()
	require.Len(t, logged, 1)
	assert.Equal(t, "6", logged[0].ContextMap()["blockID"])
	assert.Contains(t, p.publisher.types(), events.TypeHistoryGapDetected)
}

func TestCacheFailureSkipsHistory(t *testing.T) {
	upsertErr := pkgerrors.NewStorageError("upsert block cache", stderrors.New("unavailable"))
	p := newPipeline(t, func(store *memory.Store, o *pipelineOptions) {
		o.cache = failingCache{Store: store, err: upsertErr}
	})

	_, err := p.analysis.RecordAnalysis(context.Background(), entities.ScoreEventInput{SubcomponentID: "7-1", OverallScore: 60})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStorage(err))
	assert.Equal(t, 0, p.historyCount(t, 7))
}

func TestRecordFailureSkipsReconcile(t *testing.T) {
	recordErr := pkgerrors.NewStorageError("record score event", stderrors.New("disk full"))
	p := newPipeline(t, func(store *memory.Store, o *pipelineOptions) {
		o.events = failingRecorder{Store: store, err: recordErr}
	})

	_, err := p.analysis.RecordAnalysis(context.Background(), entities.ScoreEventInput{SubcomponentID: "8-1", OverallScore: 60})
	require.ErrorIs(t, err, recordErr)

	row, err := p.store.Read(context.Background(), valueobjects.MustBlockID(8))
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Empty(t, p.publisher.types())
}

func TestValidationHappensBeforeWrites(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	inputs := []entities.ScoreEventInput{
		{SubcomponentID: "1-9", OverallScore: 10},
		{SubcomponentID: "x", OverallScore: 10},
		{SubcomponentID: "1-1", OverallScore: 101},
		{SubcomponentID: "17-1", OverallScore: 10},
	}
	for _, in := range inputs {
		_, err := p.analysis.RecordAnalysis(ctx, in)
		assert.True(t, pkgerrors.IsValidation(err), in.SubcomponentID)
	}

	rows, err := p.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReconcileRejectsForeignTrigger(t *testing.T) {
	p := newPipeline(t, nil)
	trigger := valueobjects.MustSubcomponentID("2-1")

	_, err := p.reconciler.Reconcile(context.Background(), valueobjects.MustBlockID(1), &trigger)
	assert.True(t, pkgerrors.IsValidation(err))
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) LockBlock(ctx context.Context, blockID valueobjects.BlockID) (func(context.Context) error, error) {
	args := m.Called(ctx, blockID)
	release, _ := args.Get(0).(func(context.Context) error)
	return release, args.Error(1)
}

func TestReconcileHoldsBlockLock(t *testing.T) {
	released := 0
	locker := &mockLocker{}
	locker.On("LockBlock", mock.Anything, valueobjects.MustBlockID(9)).
		Return(func(context.Context) error { released++; return nil }, nil).Once()

	p := newPipeline(t, func(_ *memory.Store, o *pipelineOptions) { o.locker = locker })
	p.record(t, "9-3", 70)

	locker.AssertExpectations(t)
	assert.Equal(t, 1, released)
}

func TestReconcileLockFailureAbortsBeforeWrites(t *testing.T) {
	lockErr := stderrors.New("lock already held for resource: block#10")
	locker := &mockLocker{}
	locker.On("LockBlock", mock.Anything, mock.Anything).Return(nil, lockErr)

	p := newPipeline(t, func(_ *memory.Store, o *pipelineOptions) { o.locker = locker })
	_, err := p.reconciler.Reconcile(context.Background(), valueobjects.MustBlockID(10), nil)
	require.ErrorIs(t, err, lockErr)

	row, err := p.store.Read(context.Background(), valueobjects.MustBlockID(10))
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestSubcomponentChanges(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	for _, in := range []entities.ScoreEventInput{
		{SubcomponentID: "11-2", OverallScore: 50, DimensionScores: map[string]int{"clarity": 50}},
		{SubcomponentID: "11-2", OverallScore: 65, DimensionScores: map[string]int{"clarity": 70, "depth": 30}},
	} {
		_, err := p.analysis.RecordAnalysis(ctx, in)
		require.NoError(t, err)
	}

	changes, err := p.reader.SubcomponentChanges(ctx, valueobjects.MustSubcomponentID("11-2"), 7)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, 15, changes[0].Improvement)
	assert.Equal(t, 20, changes[0].Dimensions["clarity"].Delta)
	assert.Equal(t, 0, changes[0].Dimensions["depth"].Delta)
	assert.Equal(t, 0, changes[1].Improvement)

	empty, err := p.reader.SubcomponentChanges(ctx, valueobjects.MustSubcomponentID("11-3"), 7)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
