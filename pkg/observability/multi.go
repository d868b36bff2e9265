package observability

import (
	"time"

	"assessment-backend/application/ports"
)

// MultiMetrics fans every observation out to several sinks
type MultiMetrics []ports.Metrics

var _ ports.Metrics = MultiMetrics(nil)

func (m MultiMetrics) AnalysisRecorded(blockID string) {
	for _, s := range m {
		s.AnalysisRecorded(blockID)
	}
}

func (m MultiMetrics) ReconcileCompleted(changed bool, duration time.Duration) {
	for _, s := range m {
		s.ReconcileCompleted(changed, duration)
	}
}

func (m MultiMetrics) HistoryAppended(blockID string) {
	for _, s := range m {
		s.HistoryAppended(blockID)
	}
}

func (m MultiMetrics) HistoryGap(blockID string) {
	for _, s := range m {
		s.HistoryGap(blockID)
	}
}

func (m MultiMetrics) StoreOperation(operation string, duration time.Duration, err error) {
	for _, s := range m {
		s.StoreOperation(operation, duration, err)
	}
}
