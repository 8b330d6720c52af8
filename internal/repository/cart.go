package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lazmart/storefront/internal/domain/cart"
)

const (
	getCartSQL = `SELECT owner_id, lines, created_at, updated_at
		FROM carts WHERE owner_id = $1`

	upsertCartSQL = `INSERT INTO carts (owner_id, lines, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id) DO UPDATE SET
			lines = EXCLUDED.lines,
			updated_at = EXCLUDED.updated_at`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Cart lines
// live in a JSONB column: the cart is always read and written whole, so row
// per line would only buy contention.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByOwner returns the owner's stored cart or cart.ErrNotFound.
func (r *CartRepository) GetByOwner(ctx context.Context, ownerID string) (*cart.Cart, error) {
	var (
		c         cart.Cart
		linesJSON []byte
	)
	err := r.pool.QueryRow(ctx, getCartSQL, ownerID).
		Scan(&c.OwnerID, &linesJSON, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting cart for %q: %w", ownerID, err)
	}

	if err := json.Unmarshal(linesJSON, &c.Lines); err != nil {
		return nil, fmt.Errorf("unmarshaling cart lines for %q: %w", ownerID, err)
	}
	return &c, nil
}

// Upsert stores the cart, replacing any previous state for the owner.
func (r *CartRepository) Upsert(ctx context.Context, c *cart.Cart) error {
	linesJSON, err := json.Marshal(c.Lines)
	if err != nil {
		return fmt.Errorf("marshaling cart lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, upsertCartSQL,
		c.OwnerID, linesJSON, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting cart for %q: %w", c.OwnerID, err)
	}
	return nil
}
