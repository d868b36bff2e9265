package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// maxDatumsPerPut is the PutMetricData request limit
const maxDatumsPerPut = 1000

// CloudWatchAPI is the subset of the CloudWatch client used here
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics buffers pipeline metrics and ships them to CloudWatch
// on Flush.
type CloudWatchMetrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	buffer []types.MetricDatum
}

// NewCloudWatchMetrics creates a new CloudWatch metrics sink
func NewCloudWatchMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudWatchMetrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *CloudWatchMetrics) add(name string, value float64, unit types.StandardUnit, dims ...string) {
	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(m.now()),
	}
	for i := 0; i+1 < len(dims); i += 2 {
		datum.Dimensions = append(datum.Dimensions, types.Dimension{
			Name:  aws.String(dims[i]),
			Value: aws.String(dims[i+1]),
		})
	}

	m.mu.Lock()
	m.buffer = append(m.buffer, datum)
	m.mu.Unlock()
}

func (m *CloudWatchMetrics) AnalysisRecorded(blockID string) {
	m.add("AnalysisRecorded", 1, types.StandardUnitCount, "BlockId", blockID)
}

func (m *CloudWatchMetrics) ReconcileCompleted(changed bool, duration time.Duration) {
	status := "Unchanged"
	if changed {
		status = "Changed"
	}
	m.add("ReconcileLatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, "Result", status)
}

func (m *CloudWatchMetrics) HistoryAppended(blockID string) {
	m.add("HistoryAppended", 1, types.StandardUnitCount, "BlockId", blockID)
}

func (m *CloudWatchMetrics) HistoryGap(blockID string) {
	m.add("HistoryGap", 1, types.StandardUnitCount, "BlockId", blockID)
}

func (m *CloudWatchMetrics) StoreOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.add("StoreLatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds,
		"Operation", operation, "Status", status)
}

// Flush sends buffered datums. Datums from a failed request are dropped.
func (m *CloudWatchMetrics) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.buffer
	m.buffer = nil
	m.mu.Unlock()

	var firstErr error
	for start := 0; start < len(pending); start += maxDatumsPerPut {
		end := start + maxDatumsPerPut
		if end > len(pending) {
			end = len(pending)
		}
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: pending[start:end],
		})
		if err != nil {
			m.logger.Warn("Failed to send metrics", zap.Error(err), zap.Int("datums", end-start))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Run flushes on every tick until ctx is done, then flushes once more
func (m *CloudWatchMetrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			_ = m.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			_ = m.Flush(ctx)
		}
	}
}
