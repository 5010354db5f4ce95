package redis

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

//go:embed scripts/unlock.lua
var unlockLua string

// releaseTimeout bounds the unlock call, which runs on a fresh context so a
// cancelled caller still frees the key.
const releaseTimeout = 5 * time.Second

// LockManager hands out short leases on a key. Two fillbook processes on the
// same account use the "reaper" lease so only one of them cancels stale
// orders per tick.
type LockManager struct {
	rdb    *redis.Client
	unlock *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.Underlying(), unlock: redis.NewScript(unlockLua)}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire takes the lease on key for ttl. It returns domain.ErrLockHeld when
// someone else holds it. The returned release func is idempotent and never
// deletes a lease that has since passed to another holder.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k, token := lockKey(key), uuid.NewString()

	acquired, err := lm.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = lm.unlock.Run(rctx, lm.rdb, []string{k}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
