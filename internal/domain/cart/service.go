package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lazmart/storefront/internal/domain/pricing"
)

// Service coordinates cart mutations with durable storage and the read cache.
// Every mutation is persisted before it returns, so the cart survives process
// and session restarts. Cache failures are logged and never fail an
// operation; the repository is the source of truth.
type Service struct {
	repo  Repository
	cache Cache
	sf    singleflight.Group
}

// NewService creates a cart Service backed by the given repository and cache.
func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Get returns the owner's cart, serving from cache when possible. An owner
// without a persisted cart gets a fresh empty one. Concurrent cache misses
// for the same owner are collapsed into a single repository read.
func (s *Service) Get(ctx context.Context, ownerID string) (*Cart, error) {
	v, err, _ := s.sf.Do(ownerID, func() (any, error) {
		if c, cacheErr := s.cache.Get(ctx, ownerID); cacheErr == nil {
			return c, nil
		} else if !errors.Is(cacheErr, ErrCacheMiss) {
			zctx.From(ctx).Warn("cart cache read failed", zap.Error(cacheErr))
		}

		c, repoErr := s.repo.GetByOwner(ctx, ownerID)
		if errors.Is(repoErr, ErrNotFound) {
			return New(ownerID), nil
		}
		if repoErr != nil {
			return nil, errors.Wrap(repoErr, "load cart")
		}

		s.fillCache(ctx, ownerID, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cart), nil
}

// AddItem merges the item into the owner's cart and persists the result.
func (s *Service) AddItem(ctx context.Context, ownerID string, item Line) (*Cart, error) {
	c, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	c.Add(item)
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem deletes the line with the given item id. An absent item is not
// an error; the cart is persisted either way so repeated calls converge.
func (s *Service) RemoveItem(ctx context.Context, ownerID, itemID string) (*Cart, error) {
	c, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	c.Remove(itemID)
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateQuantity sets a line's quantity (floored at one) and persists.
// It returns ErrItemNotFound when the item id matches no line.
func (s *Service) UpdateQuantity(ctx context.Context, ownerID, itemID string, quantity int) (*Cart, error) {
	c, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if !c.SetQuantity(itemID, quantity) {
		return nil, ErrItemNotFound
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Clear empties the owner's cart and persists the empty state.
func (s *Service) Clear(ctx context.Context, ownerID string) error {
	c, err := s.load(ctx, ownerID)
	if err != nil {
		return err
	}

	c.Clear()
	return s.save(ctx, c)
}

// Totals computes the owner's cart totals. Side-effect free.
func (s *Service) Totals(ctx context.Context, ownerID string) (pricing.Totals, error) {
	c, err := s.Get(ctx, ownerID)
	if err != nil {
		return pricing.Totals{}, err
	}
	return c.Totals(), nil
}

// load reads the authoritative cart state for a mutation, bypassing the
// cache so concurrent cache staleness cannot drop lines.
func (s *Service) load(ctx context.Context, ownerID string) (*Cart, error) {
	c, err := s.repo.GetByOwner(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		return New(ownerID), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	if err := s.repo.Upsert(ctx, c); err != nil {
		return errors.Wrap(err, "save cart")
	}
	s.invalidate(ctx, c.OwnerID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, ownerID string) {
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := s.cache.Delete(cacheCtx, ownerID); err != nil {
		zctx.From(ctx).Warn("cart cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) fillCache(ctx context.Context, ownerID string, c *Cart) {
	if err := s.cache.Set(ctx, ownerID, c); err != nil {
		zctx.From(ctx).Warn("cart cache write failed", zap.Error(err))
	}
}
