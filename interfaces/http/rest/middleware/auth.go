package middleware

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"strings"

	"assessment-backend/pkg/auth"
	"assessment-backend/pkg/common"
	"assessment-backend/pkg/errors"

	"go.uber.org/zap"
)

// AuthOptions configures actor extraction
type AuthOptions struct {
	// Validator checks bearer tokens. Nil disables token checks and lets
	// anonymous requests through.
	Validator *auth.JWTValidator

	// TrustGateway accepts the X-User-ID header on requests the Lambda
	// entry point marked as authorized by API Gateway.
	TrustGateway bool

	// AllowActorHeader accepts X-Actor-ID when no validator is configured
	AllowActorHeader bool
}

// Authenticate resolves the calling actor and stores it in the request context
func Authenticate(opts AuthOptions, errs *errors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if opts.TrustGateway && r.Header.Get("X-API-Gateway-Authorized") == "true" {
				actorID := r.Header.Get("X-User-ID")
				if actorID == "" {
					errs.Handle(w, r, errors.NewUnauthorizedError("missing user context from API Gateway"))
					return
				}
				ctx = common.WithActorID(ctx, actorID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if opts.Validator == nil {
				if actorID := r.Header.Get("X-Actor-ID"); opts.AllowActorHeader && actorID != "" {
					ctx = common.WithActorID(ctx, actorID)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token := bearerToken(r)
			if token == "" {
				errs.Handle(w, r, errors.NewUnauthorizedError("missing authorization header"))
				return
			}
			claims, err := opts.Validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token", zap.Error(err), zap.String("path", r.URL.Path))
				errs.Handle(w, r, errors.NewUnauthorizedError(tokenMessage(err)))
				return
			}

			ctx = common.WithActorID(ctx, claims.ActorID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit rejects callers that exceed limiter. Authenticated callers are
// keyed by actor id, anonymous ones by remote address.
func RateLimit(limiter auth.RateLimiter, requestsPerMinute int, errs *errors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), rateKey(r.Context(), r))
			if err != nil {
				logger.Error("Rate limiter error", zap.Error(err))
				errs.Handle(w, r, errors.NewInternalError("rate limiter unavailable").WithCause(err))
				return
			}
			if !allowed {
				errs.Handle(w, r, errors.NewRateLimitError(requestsPerMinute, "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(ctx context.Context, r *http.Request) string {
	if actorID, ok := common.ActorID(ctx); ok {
		return "actor:" + actorID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func tokenMessage(err error) string {
	switch {
	case stderrors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	case stderrors.Is(err, auth.ErrInvalidSignature):
		return "invalid token signature"
	default:
		return "invalid token"
	}
}
