package services_test

import (
	"context"
	"testing"

	"docdesk/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithDocID(ctx, "doc-1")
	ctx = services.WithActor(ctx, "alice")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.DocIDFromContext(ctx); !ok || id != "doc-1" {
		t.Fatalf("unexpected doc id: %v %v", id, ok)
	}
	if actor, ok := services.ActorFromContext(ctx); !ok || actor != "alice" {
		t.Fatalf("unexpected actor: %v %v", actor, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankActorPreservesContext(t *testing.T) {
	ctx := services.WithActor(context.Background(), "")
	if _, ok := services.ActorFromContext(ctx); ok {
		t.Fatal("expected no actor value")
	}
}

func TestActorOrFallsBack(t *testing.T) {
	if got := services.ActorOr(context.Background(), "system"); got != "system" {
		t.Fatalf("expected fallback, got %q", got)
	}
	ctx := services.WithActor(context.Background(), "bob")
	if got := services.ActorOr(ctx, "system"); got != "bob" {
		t.Fatalf("expected bob, got %q", got)
	}
}
