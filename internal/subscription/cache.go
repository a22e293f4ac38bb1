package subscription

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/wharfhook/wharfhook/internal/metrics"
)

const cacheShards = 64

// Getter is the slice of the durable store the cache reads through to.
type Getter interface {
	Get(ctx context.Context, id int64) (Subscription, error)
}

// Cache is a cache-aside projection of the subscription store. Entries live
// for the configured TTL; a subscription updated or deleted upstream may keep
// being served stale for up to that window. That staleness is the accepted
// trade-off of this design. Do not add invalidation-on-write here without
// changing the subscription management surface in lockstep.
type Cache struct {
	store  Getter
	client *sturdyc.Client[Subscription]
}

// NewCache creates a read-through cache over store with the given capacity
// and validity window.
func NewCache(store Getter, capacity int, ttl time.Duration) *Cache {
	return &Cache{
		store:  store,
		client: sturdyc.New[Subscription](capacity, cacheShards, ttl, 10),
	}
}

// Resolve returns the subscription for id, serving from the cache when a live
// entry exists and reading through to the durable store on a miss. A miss that
// the store cannot satisfy returns ErrNotFound and is not cached.
func (c *Cache) Resolve(ctx context.Context, id int64) (Subscription, error) {
	fetched := false
	sub, err := c.client.GetOrFetch(ctx, strconv.FormatInt(id, 10), func(ctx context.Context) (Subscription, error) {
		fetched = true
		sub, err := c.store.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return Subscription{}, sturdyc.ErrNotFound
		}
		return sub, err
	})
	metrics.RecordCacheLookup(!fetched)
	if err != nil {
		if errors.Is(err, sturdyc.ErrNotFound) || errors.Is(err, sturdyc.ErrMissingRecord) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, err
	}
	return sub, nil
}
