package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/price-reconciler/pkg/utils"
)

const lastPricePrefix = "reconciler:price:"

// PriceCacheRepoImpl provides a concrete implementation for the PriceCache interface using Redis strings.
type PriceCacheRepoImpl struct {
	client *redis.Client
	source string
}

// NewPriceCacheRepo creates a new instance of PriceCacheRepoImpl scoped to one competitor source.
func NewPriceCacheRepo(client *redis.Client, source string) *PriceCacheRepoImpl {
	return &PriceCacheRepoImpl{client: client, source: source}
}

// generateKey creates a consistent Redis key for a SKU by hashing it.
func (r *PriceCacheRepoImpl) generateKey(sku string) string {
	return fmt.Sprintf("%s%s:%s", lastPricePrefix, r.source, utils.HashKey(sku))
}

// Swap reads the previous price and writes the new one in a MULTI/EXEC block.
func (r *PriceCacheRepoImpl) Swap(ctx context.Context, sku string, price int64, expiry time.Duration) (int64, bool, error) {
	key := r.generateKey(sku)

	var prev *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		prev = pipe.Get(ctx, key)
		pipe.Set(ctx, key, price, expiry)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, false, err
	}

	v, err := prev.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
