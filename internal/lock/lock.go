// Package lock provides per-repository mutual exclusion, either within the
// process or across tracker instances through PostgreSQL or Redis.
package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
)

// Namespace prefixes every external lock key.
const Namespace = "repohealth"

// pollInterval is how often external backends retry a busy lock.
const pollInterval = 100 * time.Millisecond

// New returns a locker for the configured backend.
func New(ctx context.Context, backend schema.LockBackend, connect string, ttl time.Duration) (contract.Locker, error) {
	switch backend {
	case schema.LocalLock, "":
		return NewLocal(), nil
	case schema.PostgresLock:
		return NewPostgres(ctx, connect)
	case schema.RedisLock:
		return NewRedis(ctx, connect, ttl)
	default:
		return nil, fmt.Errorf("unsupported lock backend: %s", backend)
	}
}

// advisoryKey64 maps a namespaced key onto the int64 space of advisory locks.
func advisoryKey64(namespace, key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
