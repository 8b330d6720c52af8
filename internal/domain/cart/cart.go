// Package cart implements the shopping cart aggregate: line merging by item
// identity, quantity rules, and derived totals.
package cart

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/lazmart/storefront/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when no cart exists for an owner.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when an item id does not match any cart line.
	ErrItemNotFound = errors.New("item not found in cart")
	// ErrCacheMiss is returned by a Cache when the owner's cart is not cached.
	ErrCacheMiss = errors.New("cart cache miss")
)

// Line is one product (plus its selected variation) in a cart. Name, Category
// and Image are denormalized from the catalog at add time so the cart renders
// without a product lookup.
type Line struct {
	ItemID       string            `json:"item_id"`
	ProductID    string            `json:"product_id"`
	Name         string            `json:"name"`
	Category     string            `json:"category,omitempty"`
	Image        string            `json:"image,omitempty"`
	Variation    map[string]string `json:"variation,omitempty"`
	UnitPrice    decimal.Decimal   `json:"unit_price"`
	SpecialPrice decimal.Decimal   `json:"special_price"`
	Quantity     int               `json:"quantity"`
}

// Cart is the mutable buyer-owned aggregate. Line order reflects insertion.
type Cart struct {
	OwnerID   string    `json:"owner_id"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemID derives the stable line identity from a product id and the selected
// variation choices. Variations are canonicalized (sorted key=value pairs) so
// the same selection always yields the same id regardless of map order.
func ItemID(productID string, variation map[string]string) string {
	if len(variation) == 0 {
		return productID
	}

	keys := make([]string, 0, len(variation))
	for k := range variation {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(productID)
	b.WriteByte('#')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(variation[k])
	}
	return b.String()
}

// New returns an empty cart for the given owner.
func New(ownerID string) *Cart {
	now := time.Now().UTC()
	return &Cart{OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Add merges an item into the cart. A line with the same ItemID has its
// quantity incremented; otherwise the item is appended. Quantities below one
// are coerced to one. Add never fails.
func (c *Cart) Add(item Line) {
	if item.ItemID == "" {
		item.ItemID = ItemID(item.ProductID, item.Variation)
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	for i := range c.Lines {
		if c.Lines[i].ItemID == item.ItemID {
			c.Lines[i].Quantity += item.Quantity
			c.touch()
			return
		}
	}

	c.Lines = append(c.Lines, item)
	c.touch()
}

// Remove deletes the line with the given item id. Removing an absent item is
// a no-op, which makes the operation idempotent.
func (c *Cart) Remove(itemID string) {
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.touch()
			return
		}
	}
}

// SetQuantity updates a line's quantity, flooring it at one. A quantity of
// zero cannot be reached through this operation; use Remove to drop a line.
// It reports whether the item was found.
func (c *Cart) SetQuantity(itemID string, quantity int) bool {
	if quantity < 1 {
		quantity = 1
	}
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			c.Lines[i].Quantity = quantity
			c.touch()
			return true
		}
	}
	return false
}

// Clear empties the cart, keeping the owner reference.
func (c *Cart) Clear() {
	c.Lines = nil
	c.touch()
}

// Totals computes the cart's subtotal, tax and grand total.
func (c *Cart) Totals() pricing.Totals {
	lines := make([]pricing.Line, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = pricing.Line{
			UnitPrice:    l.UnitPrice,
			SpecialPrice: l.SpecialPrice,
			Quantity:     l.Quantity,
		}
	}
	return pricing.Compute(lines)
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}

// Repository defines durable storage for carts.
type Repository interface {
	// GetByOwner loads the owner's cart. It returns ErrNotFound when the
	// owner has never had a cart persisted.
	GetByOwner(ctx context.Context, ownerID string) (*Cart, error)
	// Upsert persists the full cart state, creating it on first write.
	Upsert(ctx context.Context, c *Cart) error
}

// Cache is a read-through cache in front of the Repository. Implementations
// return ErrCacheMiss from Get when the owner's cart is not cached.
type Cache interface {
	Get(ctx context.Context, ownerID string) (*Cart, error)
	Set(ctx context.Context, ownerID string, c *Cart) error
	Delete(ctx context.Context, ownerID string) error
}
