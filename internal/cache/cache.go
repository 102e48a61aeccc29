package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linearcast/playout/internal/metrics"
	"github.com/linearcast/playout/pkg/models"
)

// Cache keeps channel configuration in Redis so the hot playout path
// does not hit the channel table on every evaluation.
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Client exposes the underlying Redis client for collaborators that
// share the connection, such as the extension lease.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func channelKey(id string) string {
	return fmt.Sprintf("channel:%s", id)
}

// SetChannel caches channel configuration
func (c *Cache) SetChannel(ctx context.Context, ch *models.Channel, ttl time.Duration) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("failed to marshal channel: %w", err)
	}

	return c.client.Set(ctx, channelKey(ch.ID), data, ttl).Err()
}

// GetChannel retrieves channel configuration from cache. A nil channel
// with a nil error is a cache miss.
func (c *Cache) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	data, err := c.client.Get(ctx, channelKey(channelID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.ChannelCacheMisses.Inc()
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get channel from cache: %w", err)
	}

	var ch models.Channel
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel: %w", err)
	}

	metrics.ChannelCacheHits.Inc()
	return &ch, nil
}

// DeleteChannel removes a channel from cache
func (c *Cache) DeleteChannel(ctx context.Context, channelID string) error {
	return c.client.Del(ctx, channelKey(channelID)).Err()
}
