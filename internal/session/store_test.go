package session

import (
	"context"
	"testing"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.IsVerified(ctx, 42)
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if ok {
		t.Fatal("expected unverified user")
	}

	if err := store.Verify(ctx, 42); err != nil {
		t.Fatalf("verify: %v", err)
	}
	ok, err = store.IsVerified(ctx, 42)
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if !ok {
		t.Fatal("expected verified user")
	}

	if err := store.Revoke(ctx, 42); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = store.IsVerified(ctx, 42)
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if ok {
		t.Fatal("expected revoked user to be unverified")
	}
}

func TestNewStoreBackends(t *testing.T) {
	t.Parallel()

	store, err := NewStore(config.SessionConfig{Backend: "memory"}, nil)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	if _, err := NewStore(config.SessionConfig{Backend: "redis"}, nil); err == nil {
		t.Fatal("expected error for redis backend without a client")
	}

	if _, err := NewStore(config.SessionConfig{Backend: "sheets"}, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
