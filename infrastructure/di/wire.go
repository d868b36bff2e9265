//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"assessment-backend/application/services"
	"assessment-backend/infrastructure/config"

	"github.com/google/wire"
)

// AWSSet provides the AWS SDK clients
var AWSSet = wire.NewSet(
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
)

// InfrastructureSet provides storage, locking, messaging and observability
var InfrastructureSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideBackend,
	ProvideCollector,
	ProvideCloudWatchMetrics,
	ProvideMetrics,
	ProvideStore,
	ProvideBlockLocker,
	ProvideEventPublisher,
	ProvideTracer,
)

// ApplicationSet provides the scoring services and buses
var ApplicationSet = wire.NewSet(
	ProvideLatestScoreResolver,
	services.NewBlockAggregator,
	ProvideReconciler,
	ProvideAnalysisService,
	ProvideChangeLogReader,
	ProvideCommandBus,
	ProvideQueryBus,
)

// InterfaceSet provides the HTTP surface
var InterfaceSet = wire.NewSet(
	ProvideJWTValidator,
	ProvideRateLimiter,
	ProvideRouter,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	AWSSet,
	InfrastructureSet,
	ApplicationSet,
	InterfaceSet,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The cleanup function
// closes the store.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
