package rest

import (
	"net/http"

	"assessment-backend/application/commands/bus"
	querybus "assessment-backend/application/queries/bus"
	"assessment-backend/infrastructure/config"
	"assessment-backend/interfaces/http/rest/handlers"
	"assessment-backend/interfaces/http/rest/middleware"
	"assessment-backend/pkg/auth"
	"assessment-backend/pkg/errors"
	"assessment-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	store      handlers.Pinger
	collector  *observability.Collector
	validator  *auth.JWTValidator
	limiter    auth.RateLimiter
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRouter creates a new router instance. collector, validator and limiter
// may be nil.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	store handlers.Pinger,
	collector *observability.Collector,
	validator *auth.JWTValidator,
	limiter auth.RateLimiter,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		store:      store,
		collector:  collector,
		validator:  validator,
		limiter:    limiter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	errs := errors.NewErrorHandler(rt.logger, rt.cfg.IsDevelopment())
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Recover)
	if rt.collector != nil {
		router.Use(middleware.Logger(rt.logger, rt.collector))
	} else {
		router.Use(middleware.Logger(rt.logger, nil))
	}

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"https://*", "http://localhost:*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Actor-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	health := handlers.NewHealthHandler(rt.store, rt.logger)
	router.Get("/health", health.Health)
	router.Get("/ready", health.Ready)
	if rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	scores := handlers.NewScoreHandler(rt.commandBus, rt.queryBus, errs, rt.logger)
	router.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Authenticate(middleware.AuthOptions{
			Validator:        rt.validator,
			TrustGateway:     rt.cfg.IsLambda,
			AllowActorHeader: !rt.cfg.IsProduction(),
		}, errs, rt.logger))

		r.Group(func(r chi.Router) {
			if rt.limiter != nil {
				r.Use(middleware.RateLimit(rt.limiter, rt.cfg.RateLimitPerMinute, errs, rt.logger))
			}
			r.Post("/analyses", scores.RecordAnalysis)
		})

		r.Route("/blocks", func(r chi.Router) {
			r.Get("/", scores.ListBlocks)
			r.Post("/reconcile", scores.ReconcileAll)
			r.Get("/{blockID}/cache", scores.GetBlockCache)
			r.Get("/{blockID}/aggregate", scores.GetBlockAggregate)
			r.Post("/{blockID}/reconcile", scores.ReconcileBlock)
			r.Get("/{blockID}/history", scores.GetBlockHistory)
		})

		r.Route("/subcomponents/{subcomponentID}", func(r chi.Router) {
			r.Get("/latest", scores.GetLatestScore)
			r.Get("/changes", scores.GetSubcomponentChanges)
		})
	})

	return router
}
