package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisRegistry(t *testing.T, idle time.Duration) (*RedisSessionRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionRegistry(client, idle), mr
}

func TestRedisRegistryCreateAndResolve(t *testing.T) {
	r, _ := newTestRedisRegistry(t, time.Hour)
	ctx := context.Background()

	token, err := r.CreateOrReplace(ctx, testUser("alice", "USER", "AUDITOR"))
	if err != nil {
		t.Fatalf("CreateOrReplace error: %v", err)
	}

	u, ok, err := r.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !ok {
		t.Fatal("Resolve(fresh token) = absent")
	}
	if u.Username != "alice" || len(u.Roles) != 2 {
		t.Fatalf("resolved user = %+v", u)
	}
}

func TestRedisRegistrySupersession(t *testing.T) {
	r, _ := newTestRedisRegistry(t, time.Hour)
	ctx := context.Background()

	first, err := r.CreateOrReplace(ctx, testUser("alice"))
	if err != nil {
		t.Fatalf("CreateOrReplace error: %v", err)
	}
	second, err := r.CreateOrReplace(ctx, testUser("alice"))
	if err != nil {
		t.Fatalf("CreateOrReplace error: %v", err)
	}

	if _, ok, _ := r.Resolve(ctx, first); ok {
		t.Fatal("superseded session still resolves")
	}
	if _, ok, _ := r.Resolve(ctx, second); !ok {
		t.Fatal("new session does not resolve")
	}
}

func TestRedisRegistryInvalidate(t *testing.T) {
	r, _ := newTestRedisRegistry(t, time.Hour)
	ctx := context.Background()

	token, _ := r.CreateOrReplace(ctx, testUser("alice"))
	if err := r.Invalidate(ctx, token); err != nil {
		t.Fatalf("Invalidate error: %v", err)
	}
	if _, ok, _ := r.Resolve(ctx, token); ok {
		t.Fatal("invalidated session still resolves")
	}
	if err := r.Invalidate(ctx, token); err != nil {
		t.Fatalf("Invalidate of absent token error: %v", err)
	}
}

func TestRedisRegistryStaleLogoutKeepsNewSession(t *testing.T) {
	r, _ := newTestRedisRegistry(t, time.Hour)
	ctx := context.Background()

	first, _ := r.CreateOrReplace(ctx, testUser("alice"))
	second, _ := r.CreateOrReplace(ctx, testUser("alice"))

	// Logging out with the superseded token must not kill the live session.
	if err := r.Invalidate(ctx, first); err != nil {
		t.Fatalf("Invalidate error: %v", err)
	}
	if _, ok, _ := r.Resolve(ctx, second); !ok {
		t.Fatal("live session lost after stale logout")
	}
}

func TestRedisRegistryIdleExpiry(t *testing.T) {
	r, mr := newTestRedisRegistry(t, 10*time.Minute)
	ctx := context.Background()

	token, _ := r.CreateOrReplace(ctx, testUser("alice"))

	mr.FastForward(9 * time.Minute)
	if _, ok, _ := r.Resolve(ctx, token); !ok {
		t.Fatal("session expired before the idle timeout")
	}

	// Resolve slid the TTL; another 9 minutes is still inside the window.
	mr.FastForward(9 * time.Minute)
	if _, ok, _ := r.Resolve(ctx, token); !ok {
		t.Fatal("touched session expired before the idle timeout")
	}

	mr.FastForward(11 * time.Minute)
	if _, ok, _ := r.Resolve(ctx, token); ok {
		t.Fatal("idle session still resolves past the timeout")
	}
}
