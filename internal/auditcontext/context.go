// Package auditcontext carries the acting principal and request identifiers
// from the entry point (operator call, MQTT message, sweeper job) down to the
// audit recorder and the logger.
package auditcontext

import "context"

type contextKey string

const (
	requestIDKey contextKey = "audit_request_id"
	actorTypeKey contextKey = "audit_actor_type"
	actorIDKey   contextKey = "audit_actor_id"
	sourceKey    contextKey = "audit_source"
)

const (
	ActorSystem   = "system"
	ActorOperator = "operator"
	ActorMeter    = "meter"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if actorType != "" {
		ctx = context.WithValue(ctx, actorTypeKey, actorType)
	}
	if actorID != "" {
		ctx = context.WithValue(ctx, actorIDKey, actorID)
	}
	return ctx
}

// ActorFromContext returns the actor, defaulting to the system actor.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return ActorSystem, ""
	}
	actorType, _ := ctx.Value(actorTypeKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	if actorType == "" {
		actorType = ActorSystem
	}
	return actorType, actorID
}

// WithSource records where the triggering event came from, e.g. "mqtt" or "sweeper".
func WithSource(ctx context.Context, source string) context.Context {
	if source == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceKey, source)
}

func SourceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(sourceKey).(string)
	return value
}
