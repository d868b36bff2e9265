package di

import (
	"context"
	"fmt"

	"assessment-backend/application/commands/bus"
	cmdhandlers "assessment-backend/application/commands/handlers"
	"assessment-backend/application/ports"
	querybus "assessment-backend/application/queries/bus"
	queryhandlers "assessment-backend/application/queries/handlers"
	"assessment-backend/application/services"
	domainconfig "assessment-backend/domain/config"
	"assessment-backend/infrastructure/config"
	"assessment-backend/infrastructure/locking"
	"assessment-backend/infrastructure/messaging/eventbridge"
	"assessment-backend/infrastructure/persistence"
	"assessment-backend/infrastructure/persistence/dynamodb"
	"assessment-backend/infrastructure/persistence/memory"
	"assessment-backend/infrastructure/persistence/postgres"
	"assessment-backend/interfaces/http/rest"
	"assessment-backend/pkg/auth"
	"assessment-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "assessment-backend"

// Backend is the raw storage handle selected by STORAGE_BACKEND, before
// instrumentation.
type Backend struct {
	ports.Store
}

// Migrator is implemented by backends that manage their own schema
type Migrator interface {
	Migrate(ctx context.Context) (int, error)
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName), zap.String("environment", cfg.Environment)), nil
}

// ProvideDomainConfig derives the scoring rules from the application config
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	domainCfg := domainconfig.DefaultDomainConfig()
	domainCfg.BlockCount = cfg.BlockCount
	domainCfg.DefaultHistoryDays = cfg.HistoryDefaultDays
	domainCfg.ReconcileLockTTL = cfg.ReconcileLockTTL
	domainCfg.ReconcileLockTimeout = cfg.ReconcileLockTimeout
	return domainCfg
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideBackend opens the configured store. The cleanup function closes it.
func ProvideBackend(ctx context.Context, cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (Backend, func(), error) {
	var store ports.Store
	switch cfg.StorageBackend {
	case config.StorageMemory:
		store = memory.NewStore()
	case config.StorageDynamoDB:
		store = dynamodb.NewStore(client, cfg.DynamoDBTable, cfg.IndexName, logger)
	case config.StoragePostgres:
		pg, err := postgres.Open(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return Backend{}, nil, err
		}
		store = pg
	default:
		return Backend{}, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	logger.Info("Storage opened", zap.String("backend", cfg.StorageBackend))
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", zap.Error(err))
		}
	}
	return Backend{Store: store}, cleanup, nil
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector()
}

// ProvideCloudWatchMetrics creates the CloudWatch sink, or nil when disabled
func ProvideCloudWatchMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.CloudWatchMetrics {
	if !cfg.EnableCloudWatch {
		return nil
	}
	return observability.NewCloudWatchMetrics(fmt.Sprintf("Assessment/%s", cfg.Environment), client, logger)
}

// ProvideMetrics fans business metrics out to every enabled sink
func ProvideMetrics(cfg *config.Config, collector *observability.Collector, cloudWatch *observability.CloudWatchMetrics) ports.Metrics {
	var sinks observability.MultiMetrics
	if cfg.EnableMetrics {
		sinks = append(sinks, collector)
	}
	if cloudWatch != nil {
		sinks = append(sinks, cloudWatch)
	}
	return sinks
}

// ProvideStore wraps the backend with latency metrics and failure logging
func ProvideStore(backend Backend, metrics ports.Metrics, logger *zap.Logger) ports.Store {
	return persistence.Instrument(backend.Store, metrics, logger)
}

// ProvideBlockLocker selects the reconcile lock named by RECONCILE_LOCK
func ProvideBlockLocker(cfg *config.Config, domainCfg *domainconfig.DomainConfig, client *awsdynamodb.Client, logger *zap.Logger) ports.BlockLocker {
	switch cfg.ReconcileLock {
	case config.LockLocal:
		return locking.NewLocalLocker(domainCfg.ReconcileLockTimeout)
	case config.LockDynamoDB:
		return dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, domainCfg.ReconcileLockTTL, domainCfg.ReconcileLockTimeout, logger)
	default:
		return locking.NoopLocker{}
	}
}

// ProvideEventPublisher creates the EventBridge publisher, or nil when
// events are disabled
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, eventbridge.DefaultBreakerConfig(), logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) ports.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideLatestScoreResolver creates the latest score resolver
func ProvideLatestScoreResolver(store ports.Store) *services.LatestScoreResolver {
	return services.NewLatestScoreResolver(store)
}

// ProvideReconciler creates the block reconciler
func ProvideReconciler(
	aggregator *services.BlockAggregator,
	store ports.Store,
	locker ports.BlockLocker,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	tracer ports.Tracer,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.Reconciler {
	return services.NewReconciler(aggregator, store, store, locker, publisher, metrics, tracer, domainCfg, logger)
}

// ProvideAnalysisService creates the analysis recording service
func ProvideAnalysisService(
	store ports.Store,
	reconciler *services.Reconciler,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	tracer ports.Tracer,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.AnalysisService {
	return services.NewAnalysisService(store, reconciler, publisher, metrics, tracer, domainCfg, logger)
}

// ProvideChangeLogReader creates the change log reader
func ProvideChangeLogReader(store ports.Store, domainCfg *domainconfig.DomainConfig) *services.ChangeLogReader {
	return services.NewChangeLogReader(store, store, domainCfg)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	analysis *services.AnalysisService,
	reconciler *services.Reconciler,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(bus.LoggingMiddleware(logger))
	if err := cmdhandlers.NewScoreCommandHandlers(analysis, reconciler, domainCfg, logger).Register(commandBus); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	store ports.Store,
	resolver *services.LatestScoreResolver,
	aggregator *services.BlockAggregator,
	changelog *services.ChangeLogReader,
	domainCfg *domainconfig.DomainConfig,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	if err := queryhandlers.NewScoreQueryHandlers(store, resolver, aggregator, changelog, domainCfg).Register(queryBus); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideJWTValidator creates the token validator, or nil when no secret is
// configured
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
	})
}

// ProvideRateLimiter creates the per-actor submission limiter
func ProvideRateLimiter(cfg *config.Config) auth.RateLimiter {
	return auth.NewKeyedLimiter(cfg.RateLimitPerMinute)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	store ports.Store,
	collector *observability.Collector,
	validator *auth.JWTValidator,
	limiter auth.RateLimiter,
	cfg *config.Config,
	logger *zap.Logger,
) *rest.Router {
	if !cfg.EnableMetrics {
		collector = nil
	}
	return rest.NewRouter(commandBus, queryBus, store, collector, validator, limiter, cfg, logger)
}
