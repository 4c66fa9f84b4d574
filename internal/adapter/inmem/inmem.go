// Package inmem holds single-process stand-ins for the Redis repositories,
// used when no Redis address is configured.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/user/price-reconciler/internal/repository"
)

// RunLock is a process-local RunLock.
type RunLock struct {
	mu      sync.Mutex
	owner   string
	expires time.Time
	now     func() time.Time
}

func NewRunLock() *RunLock {
	return &RunLock{now: time.Now}
}

func (l *RunLock) Acquire(_ context.Context, owner string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" && l.now().Before(l.expires) {
		return repository.ErrRunInProgress
	}
	l.owner = owner
	l.expires = l.now().Add(ttl)
	return nil
}

func (l *RunLock) Extend(_ context.Context, owner string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != owner || !l.now().Before(l.expires) {
		return repository.ErrLockLost
	}
	l.expires = l.now().Add(ttl)
	return nil
}

func (l *RunLock) Release(_ context.Context, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == owner {
		l.owner = ""
	}
	return nil
}

type cachedPrice struct {
	price   int64
	expires time.Time
}

// PriceCache keeps last prices in memory; they do not survive a restart.
type PriceCache struct {
	mu     sync.Mutex
	prices map[string]cachedPrice
	now    func() time.Time
}

func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]cachedPrice), now: time.Now}
}

func (c *PriceCache) Swap(_ context.Context, sku string, price int64, expiry time.Duration) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	prev, found := c.prices[sku]
	c.prices[sku] = cachedPrice{price: price, expires: now.Add(expiry)}
	if !found || !now.Before(prev.expires) {
		return 0, false, nil
	}
	return prev.price, true, nil
}
