package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const defaultLeaseTTL = 2 * time.Minute

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker coordinates ticket leases across processes using SET NX with a
// TTL, so a crashed worker cannot hold a ticket forever.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker wraps an existing client. A non-positive ttl falls back to
// the default lease TTL.
func NewRedisLocker(client *redis.Client, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("lease: redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLocker{client: client, ttl: ttl}, nil
}

// TryAcquire takes a lease on the ticket. The returned release func is safe
// to call more than once and only removes the lease if this caller still
// owns it.
func (l *RedisLocker) TryAcquire(ctx context.Context, ticketID string) (func(), bool, error) {
	if ticketID == "" {
		return nil, false, nil
	}
	key := leaseKey(ticketID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lease: acquire %s: %w", ticketID, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = releaseScript.Run(rctx, l.client, []string{key}, token).Result()
		})
	}
	return release, true, nil
}

func leaseKey(ticketID string) string {
	return "escalation:lease:" + ticketID
}
