package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lazmart/storefront/internal/domain/order"
)

const (
	orderColumns = `id, owner_id, lines, subtotal, tax, total, shipping_address,
		payment_method, status, tracking_number, version, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getOrderByIDSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE id = $1`

	listOrdersByOwnerSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE owner_id = $1 ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders ORDER BY created_at DESC`

	listOrdersByStatusSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE status = $1 ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET
			status = $2,
			tracking_number = CASE WHEN $3 <> '' THEN $3 ELSE tracking_number END,
			version = version + 1,
			updated_at = $4
		WHERE id = $1 AND version = $5
		RETURNING ` + orderColumns

	orderStatsSQL = `SELECT
			count(*),
			coalesce(sum(total) FILTER (WHERE status = 'completed'), 0),
			coalesce(sum(total) FILTER (WHERE status IN ('to-pay', 'to-ship', 'to-receive')), 0)
		FROM orders`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// lines and the shipping address are serialized to JSONB: both are immutable
// snapshots, never queried field by field.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.OwnerID, linesJSON, o.Subtotal, o.Tax, o.Total, addrJSON,
		o.PaymentMethod, o.Status, o.TrackingNumber, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByOwner returns the owner's orders, newest first.
func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", ownerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListAll returns all orders, newest first, optionally filtered by status.
func (r *OrderRepository) ListAll(ctx context.Context, status order.Status) ([]order.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = r.pool.Query(ctx, listAllOrdersSQL)
	} else {
		rows, err = r.pool.Query(ctx, listOrdersByStatusSQL, status)
	}
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus transitions an order's status with a compare-and-swap on the
// version column. Zero rows back means either the order is gone or another
// transition won the race; a follow-up read tells the two apart.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, trackingNumber string, version int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateOrderStatusSQL,
		id, status, trackingNumber, time.Now().UTC(), version,
	)
	if err != nil {
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, order.ErrNotFound) {
				return nil, order.ErrNotFound
			}
			return nil, order.ErrVersionConflict
		}
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}
	return &o, nil
}

// Stats aggregates order counts and revenue for the seller dashboard.
func (r *OrderRepository) Stats(ctx context.Context) (*order.Stats, error) {
	var st order.Stats
	err := r.pool.QueryRow(ctx, orderStatsSQL).
		Scan(&st.TotalOrders, &st.CompletedRevenue, &st.ToReleaseAmount)
	if err != nil {
		return nil, fmt.Errorf("aggregating order stats: %w", err)
	}
	return &st, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		linesJSON []byte
		addrJSON  []byte
	)
	err := row.Scan(
		&o.ID, &o.OwnerID, &linesJSON, &o.Subtotal, &o.Tax, &o.Total, &addrJSON,
		&o.PaymentMethod, &o.Status, &o.TrackingNumber, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return o, fmt.Errorf("unmarshaling order lines: %w", err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	return o, nil
}
