package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsPipelineEvents(t *testing.T) {
	c := NewCollector()

	c.AnalysisRecorded("1")
	c.AnalysisRecorded("1")
	c.ReconcileCompleted(true, 20*time.Millisecond)
	c.ReconcileCompleted(false, 5*time.Millisecond)
	c.HistoryGap("3")
	c.StoreOperation("append_history", time.Millisecond, errors.New("down"))
	c.StoreOperation("read_cache", time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.analysesRecorded.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reconciles.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.historyGaps.WithLabelValues("3")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.storeLatency))
}

func TestCollectorHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.HistoryAppended("2")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `assessment_history_snapshots_total{block="2"} 1`))
}

type fakeCloudWatch struct {
	calls [][]int
	err   error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.calls = append(f.calls, []int{len(in.MetricData)})
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestCloudWatchMetricsFlushBatches(t *testing.T) {
	client := &fakeCloudWatch{}
	m := NewCloudWatchMetrics("Assessment", client, nil)

	for i := 0; i < maxDatumsPerPut+5; i++ {
		m.AnalysisRecorded("1")
	}
	require.NoError(t, m.Flush(context.Background()))
	require.Len(t, client.calls, 2)
	assert.Equal(t, maxDatumsPerPut, client.calls[0][0])
	assert.Equal(t, 5, client.calls[1][0])

	// buffer drained
	require.NoError(t, m.Flush(context.Background()))
	assert.Len(t, client.calls, 2)
}

func TestCloudWatchMetricsFlushError(t *testing.T) {
	client := &fakeCloudWatch{err: errors.New("throttled")}
	m := NewCloudWatchMetrics("Assessment", client, nil)
	m.HistoryGap("4")

	assert.Error(t, m.Flush(context.Background()))
}

func TestMultiMetricsFansOut(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	MultiMetrics{a, b}.HistoryGap("7")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.historyGaps.WithLabelValues("7")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.historyGaps.WithLabelValues("7")))
}

func TestDisabledTracerRunsFunction(t *testing.T) {
	var tracer *Tracer
	called := false
	err := tracer.TraceFunction(context.Background(), "noop", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	boom := errors.New("boom")
	assert.ErrorIs(t, NewTracer("svc", false).TraceFunction(context.Background(), "x", func(context.Context) error { return boom }), boom)
}
