package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lazmart/storefront/internal/domain/cart"
	"github.com/lazmart/storefront/internal/domain/pricing"
	"github.com/lazmart/storefront/internal/domain/product"
	"github.com/lazmart/storefront/internal/events"
)

// Carts is the slice of the cart service checkout depends on.
type Carts interface {
	Get(ctx context.Context, ownerID string) (*cart.Cart, error)
	Clear(ctx context.Context, ownerID string) error
}

// Publisher delivers order events to interested parties.
type Publisher interface {
	Publish(e events.Event)
}

// Actor identifies who is performing an order operation. Sellers may drive
// any order through its lifecycle; buyers only act on their own orders.
type Actor struct {
	ID     string
	Seller bool
}

// Service implements checkout and the order lifecycle operations.
type Service struct {
	carts    Carts
	products product.Repository
	orders   Repository
	bus      Publisher
}

// NewService creates an order Service.
func NewService(carts Carts, products product.Repository, orders Repository, bus Publisher) *Service {
	return &Service{carts: carts, products: products, orders: orders, bus: bus}
}

// Checkout converts the owner's cart into an order.
//
// Stock is reserved with conditional decrements before the order row is
// written, so two buyers racing for the last unit cannot both succeed; a
// failure after partial reservation restores every unit already taken. The
// cart is emptied last, and a failure there is only logged because the order
// has already been placed.
func (s *Service) Checkout(ctx context.Context, ownerID string, addr Address, method PaymentMethod) (*Order, error) {
	c, err := s.carts.Get(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	lines := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, Line{
			ProductID:       l.ProductID,
			Name:            l.Name,
			Quantity:        l.Quantity,
			PriceAtPurchase: pricing.Effective(l.UnitPrice, l.SpecialPrice),
		})
	}
	totals := c.Totals()

	if err := s.reserveStock(ctx, lines); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Lines:           lines,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Total:           totals.Total,
		ShippingAddress: addr,
		PaymentMethod:   method,
		Status:          initialStatus(method),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		s.releaseStock(ctx, lines)
		return nil, errors.Wrap(err, "create order")
	}

	if err := s.carts.Clear(ctx, ownerID); err != nil {
		zctx.From(ctx).Warn("clear cart after checkout",
			zap.String("order_id", o.ID), zap.Error(err))
	}

	s.bus.Publish(events.OrderCreated{
		ID:      o.ID,
		OwnerID: o.OwnerID,
		Total:   o.Total,
		Status:  string(o.Status),
		At:      o.CreatedAt,
	})
	return o, nil
}

// initialStatus picks the first lifecycle state. Cash-on-delivery has no
// payment step, so those orders start ready to ship.
func initialStatus(method PaymentMethod) Status {
	if method == PaymentCOD {
		return StatusToShip
	}
	return StatusToPay
}

func (s *Service) reserveStock(ctx context.Context, lines []Line) error {
	// Lines for the same product (different variations) draw from one
	// stock counter, so reservation works on per-product sums.
	type reservation struct {
		productID string
		qty       int
	}
	taken := make([]reservation, 0, len(lines))
	qtyByProduct := make(map[string]int, len(lines))
	orderOfProducts := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, seen := qtyByProduct[l.ProductID]; !seen {
			orderOfProducts = append(orderOfProducts, l.ProductID)
		}
		qtyByProduct[l.ProductID] += l.Quantity
	}

	for _, id := range orderOfProducts {
		qty := qtyByProduct[id]
		if err := s.products.DecrementStock(ctx, id, qty); err != nil {
			for _, r := range taken {
				if restoreErr := s.products.RestoreStock(ctx, r.productID, r.qty); restoreErr != nil {
					zctx.From(ctx).Error("restore stock after failed reservation",
						zap.String("product_id", r.productID), zap.Error(restoreErr))
				}
			}
			if errors.Is(err, product.ErrInsufficientStock) {
				return &InsufficientStockError{ProductID: id}
			}
			if errors.Is(err, product.ErrNotFound) {
				return errors.Wrapf(product.ErrNotFound, "product %s", id)
			}
			return errors.Wrap(err, "reserve stock")
		}
		taken = append(taken, reservation{productID: id, qty: qty})
	}
	return nil
}

func (s *Service) releaseStock(ctx context.Context, lines []Line) {
	qtyByProduct := make(map[string]int, len(lines))
	for _, l := range lines {
		qtyByProduct[l.ProductID] += l.Quantity
	}
	for id, qty := range qtyByProduct {
		if err := s.products.RestoreStock(ctx, id, qty); err != nil {
			zctx.From(ctx).Error("restore stock after failed order create",
				zap.String("product_id", id), zap.Error(err))
		}
	}
}

// Get returns an order. Buyers only see their own orders; an order belonging
// to someone else yields ErrNotFound rather than leaking its existence.
func (s *Service) Get(ctx context.Context, id string, actor Actor) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Seller && o.OwnerID != actor.ID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListByOwner returns the buyer's orders, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	return s.orders.ListByOwner(ctx, ownerID)
}

// ListAll returns all orders for the seller console, optionally filtered by
// status.
func (s *Service) ListAll(ctx context.Context, status Status) ([]Order, error) {
	return s.orders.ListAll(ctx, status)
}

// AdvanceStatus moves an order to target. Only sellers may call it; the
// transition must be legal from the order's current status, and the update is
// a compare-and-swap on the order's version so concurrent transitions cannot
// both apply. A non-empty tracking number is recorded alongside the move.
func (s *Service) AdvanceStatus(ctx context.Context, id string, target Status, trackingNumber string, actor Actor) (*Order, error) {
	if !actor.Seller {
		return nil, ErrNotAuthorized
	}

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(target) {
		return nil, &InvalidTransitionError{From: o.Status, To: target}
	}

	updated, err := s.orders.UpdateStatus(ctx, id, target, trackingNumber, o.Version)
	if err != nil {
		return nil, err
	}

	// Cancelling through the generic status endpoint must release reserved
	// stock exactly like Cancel does.
	if target == StatusCancelled {
		s.releaseStock(ctx, updated.Lines)
	}
	s.publishStatusChange(o.Status, updated)
	return updated, nil
}

// Cancel cancels an order. Buyers may cancel their own orders only while
// payment is still pending; sellers may cancel any order the state machine
// still allows to be cancelled.
func (s *Service) Cancel(ctx context.Context, id string, actor Actor) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.Seller {
		if o.OwnerID != actor.ID {
			return nil, ErrNotFound
		}
		if o.Status != StatusToPay {
			return nil, ErrNotAuthorized
		}
	}
	if !o.Status.Cancellable() {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}

	updated, err := s.orders.UpdateStatus(ctx, id, StatusCancelled, "", o.Version)
	if err != nil {
		return nil, err
	}

	s.releaseStock(ctx, updated.Lines)
	s.publishStatusChange(o.Status, updated)
	return updated, nil
}

// Stats returns the seller income dashboard figures.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.orders.Stats(ctx)
}

func (s *Service) publishStatusChange(from Status, o *Order) {
	s.bus.Publish(events.OrderStatusChanged{
		ID:   o.ID,
		From: string(from),
		To:   string(o.Status),
		At:   o.UpdatedAt,
	})
}
