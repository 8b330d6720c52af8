package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lazmart/storefront/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, special_price, category, image, stock, sold, created_at`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products ORDER BY id`

	listProductsByCategorySQL = `SELECT ` + productColumns + `
		FROM products WHERE category = $1 ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1)`

	countProductsSQL = `SELECT count(*) FROM products`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, special_price, category, image, stock, sold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			special_price = EXCLUDED.special_price,
			category = EXCLUDED.category,
			image = EXCLUDED.image,
			stock = EXCLUDED.stock`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, sold = sold + $2
		WHERE id = $1 AND stock >= $2`

	restoreStockSQL = `UPDATE products SET stock = stock + $2, sold = greatest(sold - $2, 0)
		WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns catalog products ordered by ID, filtered by category when one
// is given.
func (r *ProductRepository) List(ctx context.Context, category string) ([]product.Product, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if category == "" {
		rows, err = r.pool.Query(ctx, listProductsSQL)
	} else {
		rows, err = r.pool.Query(ctx, listProductsByCategorySQL, category)
	}
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Count returns the number of catalog entries.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countProductsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

// Upsert creates or replaces a catalog entry.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.SpecialPrice,
		p.Category, p.Image, p.Stock, p.Sold,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Delete removes a catalog entry; deleting an absent id is not an error.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteProductSQL, id); err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	return nil
}

// DecrementStock atomically moves qty units from stock to sold. The guard in
// the WHERE clause makes the decrement conditional: zero rows affected means
// the product is missing or short on stock.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	tag, err := r.pool.Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); errors.Is(err, product.ErrNotFound) {
			return product.ErrNotFound
		}
		return product.ErrInsufficientStock
	}
	return nil
}

// RestoreStock reverses a previous DecrementStock.
func (r *ProductRepository) RestoreStock(ctx context.Context, id string, qty int) error {
	if _, err := r.pool.Exec(ctx, restoreStockSQL, id, qty); err != nil {
		return fmt.Errorf("restoring stock for %q: %w", id, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.SpecialPrice,
		&p.Category, &p.Image, &p.Stock, &p.Sold, &p.CreatedAt,
	)
	return p, err
}
