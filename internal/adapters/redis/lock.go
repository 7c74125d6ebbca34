package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeatLocker is the TTL-bounded mutual-exclusion primitive for seats,
// backed by SET NX PX. A redis outage fails acquisition closed: the caller
// sees an error, never a false success.
type SeatLocker struct {
	client *redis.Client
}

func NewSeatLocker(client *redis.Client) *SeatLocker {
	return &SeatLocker{client: client}
}

func (l *SeatLocker) Client() *redis.Client {
	return l.client
}

func (l *SeatLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	res := l.client.SetNX(ctx, key, "locked", ttl)
	if err := res.Err(); err != nil {
		return false, err
	}
	return res.Val(), nil
}

// Release deletes the lock unconditionally. Releasing an already-expired
// key is a no-op.
func (l *SeatLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}
