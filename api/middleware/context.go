package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxActorID   contextKey = "actor_id"
	ctxRequestID contextKey = "request_id"
)

// ActorIDFromContext returns the acting user, if the caller identified one.
func ActorIDFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxActorID).(uuid.UUID); ok {
		return &v
	}
	return nil
}

// WithActorID injects the acting user into the context.
func WithActorID(ctx context.Context, actorID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActorID, actorID)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRequestID, id)
}

// RequestIDFromContext returns "" outside the RequestID middleware.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}
