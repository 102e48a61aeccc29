package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/linearcast/playout/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	if cache == nil {
		t.Fatal("Cache should not be nil")
	}

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCache_ChannelOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	ch := &models.Channel{
		ID:        "ch-1",
		Name:      "Channel One",
		Namespace: "channel-one",
	}

	// Test SetChannel
	if err := cache.SetChannel(ctx, ch, 5*time.Minute); err != nil {
		t.Fatalf("SetChannel failed: %v", err)
	}

	// Test GetChannel
	retrieved, err := cache.GetChannel(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChannel failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Retrieved channel should not be nil")
	}
	if retrieved.ID != ch.ID {
		t.Errorf("Expected ID %s, got %s", ch.ID, retrieved.ID)
	}
	if retrieved.Namespace != ch.Namespace {
		t.Errorf("Expected namespace %s, got %s", ch.Namespace, retrieved.Namespace)
	}

	// Test DeleteChannel
	if err := cache.DeleteChannel(ctx, ch.ID); err != nil {
		t.Fatalf("DeleteChannel failed: %v", err)
	}

	retrieved, err = cache.GetChannel(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChannel after delete failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Expected cache miss after delete")
	}
}

func TestCache_LiveOverrideRoundTrip(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	ch := &models.Channel{
		ID:            "ch-live",
		Name:          "Live Channel",
		Namespace:     "live",
		LiveOverride:  true,
		LiveSourceRef: "https://live.example.com/embed/1",
	}

	if err := cache.SetChannel(ctx, ch, time.Minute); err != nil {
		t.Fatalf("SetChannel failed: %v", err)
	}

	retrieved, err := cache.GetChannel(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChannel failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Retrieved channel should not be nil")
	}
	if !retrieved.LiveOverride {
		t.Error("LiveOverride flag should survive the round trip")
	}
	if retrieved.LiveSourceRef != ch.LiveSourceRef {
		t.Errorf("Expected live source %s, got %s", ch.LiveSourceRef, retrieved.LiveSourceRef)
	}
}

func TestCache_MissReturnsNil(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	retrieved, err := cache.GetChannel(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetChannel failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Expected nil channel on cache miss")
	}
}
