// Package product defines the catalog item model and its persistence
// contract. The storefront core treats products as read-mostly; the only
// writes it performs are the stock/sold counters moved during checkout and
// the seller console's catalog management.
package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a conditional stock decrement
	// would drive the stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product represents a catalog item available for purchase. SpecialPrice is
// the promotional override; zero means no promotion is running.
type Product struct {
	ID           string
	Name         string
	Description  string
	Price        decimal.Decimal
	SpecialPrice decimal.Decimal
	Category     string
	Image        string
	Stock        int
	Sold         int
	CreatedAt    time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	// List returns catalog products, optionally filtered by category
	// (empty string means all), ordered by id.
	List(ctx context.Context, category string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Count(ctx context.Context) (int64, error)

	// Upsert creates or replaces a catalog entry (seller console).
	Upsert(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error

	// DecrementStock atomically moves qty units from stock to sold,
	// failing with ErrInsufficientStock when fewer than qty units remain.
	DecrementStock(ctx context.Context, id string, qty int) error
	// RestoreStock reverses a previous DecrementStock (checkout
	// compensation path).
	RestoreStock(ctx context.Context, id string, qty int) error
}
