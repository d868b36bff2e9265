package common

import "context"

// ContextKey represents a context key type
type ContextKey string

// ContextKeyActorID carries the authenticated actor id
const ContextKeyActorID ContextKey = "actor_id"

// WithActorID adds the authenticated actor to ctx
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// ActorID extracts the authenticated actor from ctx
func ActorID(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(ContextKeyActorID).(string)
	return actorID, ok && actorID != ""
}
