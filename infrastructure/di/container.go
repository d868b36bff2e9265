package di

import (
	"context"
	"fmt"
	"time"

	"assessment-backend/application/commands/bus"
	"assessment-backend/application/ports"
	querybus "assessment-backend/application/queries/bus"
	"assessment-backend/infrastructure/config"
	"assessment-backend/interfaces/http/rest"
	"assessment-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Backend    Backend
	Store      ports.Store
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Router     *rest.Router
	CloudWatch *observability.CloudWatchMetrics
}

// Migrate applies pending schema migrations on backends that have a schema
func (c *Container) Migrate(ctx context.Context) (int, error) {
	m, ok := c.Backend.Store.(Migrator)
	if !ok {
		return 0, fmt.Errorf("storage backend %q has no schema migrations", c.Config.StorageBackend)
	}
	return m.Migrate(ctx)
}

// RunBackground starts the periodic CloudWatch flush when the sink is enabled.
// It returns once ctx is cancelled and the final flush is done.
func (c *Container) RunBackground(ctx context.Context) {
	if c.CloudWatch == nil {
		<-ctx.Done()
		return
	}
	interval := c.Config.MetricsFlushInterval
	if interval <= 0 {
		interval = time.Minute
	}
	c.CloudWatch.Run(ctx, interval)
}
