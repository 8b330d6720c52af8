// Package cache holds the Redis read cache used in front of the cart store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/lazmart/storefront/internal/domain/cart"
)

var _ cart.Cache = (*CartCache)(nil)

// CartCache stores serialized carts in Redis keyed by owner. Entries expire
// on a TTL with random jitter so a burst of writes does not produce a burst
// of simultaneous expirations.
type CartCache struct {
	client    *redis.Client
	baseTTL   time.Duration
	jitterMax time.Duration
}

// NewCartCache creates a CartCache over the given client.
func NewCartCache(client *redis.Client) *CartCache {
	return &CartCache{
		client:    client,
		baseTTL:   15 * time.Minute,
		jitterMax: 5 * time.Minute,
	}
}

func (c *CartCache) Get(ctx context.Context, ownerID string) (*cart.Cart, error) {
	data, err := c.client.Get(ctx, cartKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var out cart.Cart
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshal cached cart")
	}
	return &out, nil
}

func (c *CartCache) Set(ctx context.Context, ownerID string, ct *cart.Cart) error {
	data, err := json.Marshal(ct)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}

	ttl := c.baseTTL + time.Duration(rand.Int63n(int64(c.jitterMax)))
	if err := c.client.Set(ctx, cartKey(ownerID), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (c *CartCache) Delete(ctx context.Context, ownerID string) error {
	if err := c.client.Del(ctx, cartKey(ownerID)).Err(); err != nil {
		return errors.Wrap(err, "redis delete")
	}
	return nil
}

func cartKey(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}

// Nop satisfies cart.Cache when Redis is not configured: every read misses
// and writes vanish, so the service always falls through to the repository.
type Nop struct{}

var _ cart.Cache = Nop{}

func (Nop) Get(context.Context, string) (*cart.Cart, error) { return nil, cart.ErrCacheMiss }
func (Nop) Set(context.Context, string, *cart.Cart) error   { return nil }
func (Nop) Delete(context.Context, string) error            { return nil }
