// Package identity carries the acting user through request contexts so the
// audit recorder can attribute history entries. Authentication itself is an
// external concern; callers hand the resolved actor id to the middleware.
package identity

import "context"

type contextKey struct{}

// SystemActor is recorded when no actor is attached to the context, e.g.
// for transitions triggered by the scheduler.
const SystemActor = "system"

// WithActor returns a context carrying the actor id.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFrom returns the actor id carried by the context, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(contextKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
