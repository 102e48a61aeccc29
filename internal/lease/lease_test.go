package lease

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestLease(t *testing.T) (*Lease, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", mr.Host(), mr.Server().Addr().Port),
	})
	t.Cleanup(func() { client.Close() })

	return New(client, time.Minute), mr
}

func TestLeaseAcquireRelease(t *testing.T) {
	l, _ := setupTestLease(t)
	ctx := context.Background()

	token, err := l.Acquire(ctx, "ch-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a non-empty token")
	}

	if err := l.Release(ctx, "ch-1", token); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Released lease can be taken again.
	if _, err := l.Acquire(ctx, "ch-1"); err != nil {
		t.Fatalf("Re-acquire after release failed: %v", err)
	}
}

func TestLeaseConflict(t *testing.T) {
	l, _ := setupTestLease(t)
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "ch-1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if _, err := l.Acquire(ctx, "ch-1"); err != ErrHeld {
		t.Errorf("Second acquire error = %v, want ErrHeld", err)
	}

	// A different channel is unaffected.
	if _, err := l.Acquire(ctx, "ch-2"); err != nil {
		t.Errorf("Acquire for other channel failed: %v", err)
	}
}

func TestLeaseReleaseWrongToken(t *testing.T) {
	l, _ := setupTestLease(t)
	ctx := context.Background()

	token, err := l.Acquire(ctx, "ch-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Wrong token is a no-op; the lease stays held.
	if err := l.Release(ctx, "ch-1", "not-the-token"); err != nil {
		t.Fatalf("Release with wrong token errored: %v", err)
	}
	if _, err := l.Acquire(ctx, "ch-1"); err != ErrHeld {
		t.Errorf("Lease should still be held, got %v", err)
	}

	// The real token still works.
	if err := l.Release(ctx, "ch-1", token); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestLeaseExpires(t *testing.T) {
	l, mr := setupTestLease(t)
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "ch-1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := l.Acquire(ctx, "ch-1"); err != nil {
		t.Errorf("Acquire after TTL expiry failed: %v", err)
	}
}
