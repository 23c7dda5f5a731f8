package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
)

type RedisLease struct {
	client rueidis.Client
	key    string
	ttl    time.Duration
	holder string
}

func NewRedisLease(client rueidis.Client, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{
		client: client,
		key:    key,
		ttl:    ttl,
		holder: uuid.NewString(),
	}
}

func (l *RedisLease) Acquire(ctx context.Context) error {
	cmd := l.client.B().Set().Key(l.key).Value(l.holder).Nx().Px(l.ttl).Build()
	result := l.client.Do(ctx, cmd)

	if err := result.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return ErrLeaseHeld
		}
		return err
	}

	return nil
}

// Release deletes the key only if this instance still holds it, so a lease
// that expired and was re-acquired elsewhere is never released from here.
func (l *RedisLease) Release(ctx context.Context) error {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

	cmd := l.client.B().Eval().Script(script).Numkeys(1).Key(l.key).Arg(l.holder).Build()
	return l.client.Do(ctx, cmd).Error()
}
