package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/repohealth/internal/contract"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the expiry only while the key still holds our token.
var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis implements locks as keys set with NX and an expiry. A held lock has
// its expiry refreshed every third of the TTL, so the TTL only bounds how
// long a crashed holder keeps a repository locked.
type Redis struct {
	rdb       *goredis.Client
	ttl       time.Duration
	namespace string
}

var _ contract.Locker = &Redis{} // Compile-time check

// NewRedis connects to the Redis server at addr.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb *goredis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl, namespace: Namespace}
}

func (r *Redis) redisKey(key string) string {
	return r.namespace + ":lock:" + key
}

// Lock polls SET NX until the key is taken or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	for {
		unlock, ok, err := r.TryLock(ctx, key)
		if err != nil || ok {
			return unlock, err
		}
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return nil, err
		}
	}
}

// TryLock attempts SET NX once.
func (r *Redis) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, r.redisKey(key), token, r.ttl).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	stop := make(chan struct{})
	go r.keepAlive(r.redisKey(key), token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			_ = releaseScript.Run(context.Background(), r.rdb, []string{r.redisKey(key)}, token).Err()
		})
	}, true, nil
}

// keepAlive refreshes the expiry of a held key until stop is closed, the
// token is gone or the client is closed.
func (r *Redis) keepAlive(key, token string, stop <-chan struct{}) {
	every := r.ttl / 3
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := renewScript.Run(ctx, r.rdb, []string{key}, token, r.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case errors.Is(err, goredis.ErrClosed):
			return
		case err == nil && n == 0:
			return // expired and possibly taken by someone else
		}
	}
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
