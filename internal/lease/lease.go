// Package lease serializes schedule extensions with a per-channel
// exclusive lease on Redis. Two concurrent extensions of the same
// channel would double-insert; the lease makes the second one fail fast.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/linearcast/playout/internal/metrics"
)

// ErrHeld is returned when another holder owns the channel's lease.
var ErrHeld = errors.New("extension lease already held")

// releaseScript deletes the lease only if the caller still owns it, so
// an expired lease reacquired by someone else is never released from
// under them.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lease hands out per-channel extension leases.
type Lease struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a lease manager. The TTL bounds how long a crashed worker
// can block a channel.
func New(client *redis.Client, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Lease{client: client, ttl: ttl}
}

func leaseKey(channelID string) string {
	return fmt.Sprintf("extend:lease:%s", channelID)
}

// Acquire takes the channel's lease and returns an ownership token.
// ErrHeld means someone else has it.
func (l *Lease) Acquire(ctx context.Context, channelID string) (string, error) {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, leaseKey(channelID), token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		metrics.LeaseConflictsTotal.Inc()
		return "", ErrHeld
	}

	return token, nil
}

// Release gives the lease back. Only the holder of the token can
// release it; a stale token is a silent no-op.
func (l *Lease) Release(ctx context.Context, channelID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{leaseKey(channelID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
