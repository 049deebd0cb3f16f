package token

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
)

func newTestRedisBackend(t *testing.T) *RedisBackend {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisBackend(client)
}

func TestSessionBackend(t *testing.T) {
	ctx := context.Background()
	backend := NewSessionBackend()

	if err := backend.Set(ctx, "access", "tok-1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, err := backend.Get(ctx, "access")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "tok-1" {
		t.Errorf("expected tok-1, got %q", value)
	}

	if err := backend.Delete(ctx, "access"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	value, _ = backend.Get(ctx, "access")
	if value != "" {
		t.Errorf("expected empty after delete, got %q", value)
	}
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	backend := newTestRedisBackend(t)

	value, err := backend.Get(ctx, "user1:access")
	if err != nil {
		t.Fatalf("get on missing key failed: %v", err)
	}
	if value != "" {
		t.Errorf("expected empty for missing key, got %q", value)
	}

	if err := backend.Set(ctx, "user1:access", "tok-2"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, err = backend.Get(ctx, "user1:access")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "tok-2" {
		t.Errorf("expected tok-2, got %q", value)
	}

	if err := backend.Delete(ctx, "user1:access"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	value, _ = backend.Get(ctx, "user1:access")
	if value != "" {
		t.Errorf("expected empty after delete, got %q", value)
	}
}

func TestDualStore_SessionFirst(t *testing.T) {
	ctx := context.Background()
	session := NewSessionBackend()
	durable := NewSessionBackend()
	store := NewDualStore(session, durable, "user1", nil)

	session.Set(ctx, "access", "session-tok")
	durable.Set(ctx, "user1:access", "durable-tok")

	if got := store.Get(ctx, KindAccess); got != "session-tok" {
		t.Errorf("expected session value to win, got %q", got)
	}
}

func TestDualStore_DurableFallback(t *testing.T) {
	ctx := context.Background()
	session := NewSessionBackend()
	durable := NewSessionBackend()
	store := NewDualStore(session, durable, "user1", nil)

	durable.Set(ctx, "user1:access", "durable-tok")

	if got := store.Get(ctx, KindAccess); got != "durable-tok" {
		t.Errorf("expected durable fallback, got %q", got)
	}
}

func TestDualStore_WritesBothAreas(t *testing.T) {
	ctx := context.Background()
	session := NewSessionBackend()
	durable := NewSessionBackend()
	store := NewDualStore(session, durable, "user1", nil)

	store.Set(ctx, KindRefresh, "refresh-tok")

	if got, _ := session.Get(ctx, "refresh"); got != "refresh-tok" {
		t.Errorf("session area not written, got %q", got)
	}
	if got, _ := durable.Get(ctx, "user1:refresh"); got != "refresh-tok" {
		t.Errorf("durable area not written, got %q", got)
	}

	store.Clear(ctx, KindRefresh)
	if got := store.Get(ctx, KindRefresh); got != "" {
		t.Errorf("expected empty after clear, got %q", got)
	}
}

func TestDualStore_PrincipalIsolation(t *testing.T) {
	ctx := context.Background()
	durable := newTestRedisBackend(t)

	storeA := NewDualStore(NewSessionBackend(), durable, "alice", nil)
	storeB := NewDualStore(NewSessionBackend(), durable, "bob", nil)

	storeA.Set(ctx, KindAccess, "alice-tok")

	if got := storeB.Get(ctx, KindAccess); got != "" {
		t.Errorf("expected bob to see no token, got %q", got)
	}
	if got := storeA.Get(ctx, KindAccess); got != "alice-tok" {
		t.Errorf("expected alice-tok, got %q", got)
	}
}
