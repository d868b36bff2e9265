package config

import "time"

const (
	// SubcomponentsPerBlock is the fixed number of subcomponents scored in every block.
	SubcomponentsPerBlock = 6

	// DefaultBlockCount is the number of blocks in the standard taxonomy.
	DefaultBlockCount = 16

	// MinScore and MaxScore bound every overall and dimension score.
	MinScore = 0
	MaxScore = 100

	// TriggerEventAnalysisCompleted tags history snapshots written by reconcile.
	TriggerEventAnalysisCompleted = "analysis_completed"
)

// DomainConfig holds the configurable business rules of the scoring pipeline
type DomainConfig struct {
	// Taxonomy
	BlockCount            int
	SubcomponentsPerBlock int

	// Change log windows
	DefaultHistoryDays int
	MaxHistoryDays     int

	// Reconcile lock: TTL bounds how long a crashed holder blocks the block,
	// timeout bounds how long a reconcile waits for the lock.
	ReconcileLockTTL     time.Duration
	ReconcileLockTimeout time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		BlockCount:            DefaultBlockCount,
		SubcomponentsPerBlock: SubcomponentsPerBlock,

		DefaultHistoryDays: 30,
		MaxHistoryDays:     3650,

		ReconcileLockTTL:     10 * time.Second,
		ReconcileLockTimeout: 5 * time.Second,
	}
}

// TotalSubcomponents returns the size of the whole taxonomy
func (c *DomainConfig) TotalSubcomponents() int {
	return c.BlockCount * c.SubcomponentsPerBlock
}

// ClampHistoryDays normalizes a requested change-log window.
// Zero or negative means "use the default".
func (c *DomainConfig) ClampHistoryDays(days int) int {
	if days <= 0 {
		return c.DefaultHistoryDays
	}
	if days > c.MaxHistoryDays {
		return c.MaxHistoryDays
	}
	return days
}
