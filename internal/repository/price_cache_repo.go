package repository

import (
	"context"
	"time"
)

// PriceCache remembers the last scraped price per SKU across runs.
type PriceCache interface {
	// Swap stores price for sku with the given expiry and returns the previous
	// value, if any.
	Swap(ctx context.Context, sku string, price int64, expiry time.Duration) (prev int64, found bool, err error)
}
