package services

import "context"

type contextKey string

const (
	docIDKey     contextKey = "doc_id"
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithDocID annotates context with the document identifier.
func WithDocID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, docIDKey, id)
}

// DocIDFromContext extracts the document identifier if present.
func DocIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(docIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithActor annotates context with the user performing the operation.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the acting user if present.
func ActorFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(actorKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// ActorOr returns the acting user from ctx, or fallback when none is set.
func ActorOr(ctx context.Context, fallback string) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	return fallback
}
