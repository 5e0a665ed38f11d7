package auth

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if _, ok := UsernameFromContext(ctx); ok {
		t.Fatal("empty context must not carry a username")
	}
	ctx = ContextWithUsername(ctx, "alice")
	username, ok := UsernameFromContext(ctx)
	if !ok || username != "alice" {
		t.Fatalf("unexpected username %q ok=%v", username, ok)
	}

	if HasPermission(ctx, "read") {
		t.Fatal("no permissions attached yet")
	}
	ctx = ContextWithPermissions(ctx, []string{"read", "write"})
	if !HasPermission(ctx, "read") || !HasPermission(ctx, "write") {
		t.Fatal("attached permissions missing")
	}
	if HasPermission(ctx, "admin") {
		t.Fatal("unexpected permission found")
	}
	if HasPermission(ctx, "") {
		t.Fatal("empty name must be false")
	}
}
