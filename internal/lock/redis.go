package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
)

// KeyPrefix is the prefix of lock keys in Redis.
const KeyPrefix = "sigdesk:lock:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var errBusy = errors.New("lock busy")

// RedisLocker implements Locker with SET NX PX. The lease equals the
// acquisition timeout so a crashed holder frees the name on its own.
type RedisLocker struct {
	client      *redis.Client
	minInterval time.Duration
	maxInterval time.Duration
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:      client,
		minInterval: 25 * time.Millisecond,
		maxInterval: 500 * time.Millisecond,
	}
}

// Acquire polls SET NX until it wins or timeout elapses.
func (l *RedisLocker) Acquire(ctx context.Context, name string, timeout time.Duration) (Guard, error) {
	key := KeyPrefix + name
	token := uuid.NewString()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.minInterval
	b.MaxInterval = l.maxInterval
	b.MaxElapsedTime = timeout

	try := func() error {
		ok, err := l.client.SetNX(ctx, key, token, timeout).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("acquire lock %s: %w", name, err))
		}
		if !ok {
			return errBusy
		}
		return nil
	}

	if err := backoff.Retry(try, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errBusy) {
			return nil, apperr.Errorf(apperr.ErrLockTimeout,
				"timed out after %s waiting for lock %s", timeout, name)
		}
		return nil, err
	}
	return &redisGuard{client: l.client, key: key, token: token}, nil
}

type redisGuard struct {
	client *redis.Client
	key    string
	token  string
}

func (g *redisGuard) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.key}, g.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", g.key, err)
	}
	return nil
}
