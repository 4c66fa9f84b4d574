package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/price-reconciler/internal/repository"
)

const runLockPrefix = "reconciler:lock:"

// releaseScript deletes the lock only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only while the lock still belongs to the caller.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RunLockRepoImpl provides a concrete implementation for the RunLock interface using SET NX.
type RunLockRepoImpl struct {
	client *redis.Client
	key    string
}

// NewRunLockRepo creates a lock shared by every process reconciling source.
func NewRunLockRepo(client *redis.Client, source string) *RunLockRepoImpl {
	return &RunLockRepoImpl{client: client, key: runLockPrefix + source}
}

// Acquire sets the lock key if it is free. The TTL bounds how long a crashed
// holder can block later runs.
func (r *RunLockRepoImpl) Acquire(ctx context.Context, owner string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, r.key, owner, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrRunInProgress
	}
	return nil
}

func (r *RunLockRepoImpl) Extend(ctx context.Context, owner string, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, r.client, []string{r.key}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrLockLost
	}
	return nil
}

func (r *RunLockRepoImpl) Release(ctx context.Context, owner string) error {
	return releaseScript.Run(ctx, r.client, []string{r.key}, owner).Err()
}
