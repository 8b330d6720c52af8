// Package order implements the order lifecycle: checkout from a cart, the
// status state machine, and the buyer/seller operations around it.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is an order's position in its lifecycle.
//
// The forward path is to-pay → to-ship → to-receive → completed. Cancellation
// branches off any forward state; refunds follow completion or cancellation.
// Cash-on-delivery orders skip the payment step and start at to-ship.
type Status string

const (
	StatusToPay     Status = "to-pay"
	StatusToShip    Status = "to-ship"
	StatusToReceive Status = "to-receive"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRefund    Status = "refund"
)

// transitions is the allowed-next-states table.
var transitions = map[Status][]Status{
	StatusToPay:     {StatusToShip, StatusCancelled},
	StatusToShip:    {StatusToReceive, StatusCancelled},
	StatusToReceive: {StatusCompleted, StatusCancelled},
	StatusCompleted: {StatusRefund},
	StatusCancelled: {StatusRefund},
	StatusRefund:    {},
}

// ParseStatus validates a status string. The legacy backend vocabulary's
// "pending" is accepted as an alias of to-pay.
func ParseStatus(s string) (Status, error) {
	if s == "pending" {
		return StatusToPay, nil
	}
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", errors.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// CanTransitionTo reports whether the state machine allows moving from s to
// target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this status may still be
// cancelled.
func (s Status) Cancellable() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// Terminal reports whether no further transition exists from this status.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// PaymentMethod enumerates how the buyer pays for an order.
type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online-payment"
	PaymentCOD    PaymentMethod = "cash-on-delivery"
)

// ParsePaymentMethod validates a payment method string, accepting the short
// "cod" form used by the buyer UI.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case string(PaymentOnline):
		return PaymentOnline, nil
	case string(PaymentCOD), "cod":
		return PaymentCOD, nil
	default:
		return "", errors.Errorf("unknown payment method %q", s)
	}
}

// Address is the shipping destination captured at checkout.
type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
}

// Line is an immutable snapshot of a cart line taken at checkout. The price
// is frozen here so later catalog changes never alter a placed order.
type Line struct {
	ProductID       string          `json:"product_id"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// Order is a placed order. Lines and the price fields never change after
// creation; only Status, TrackingNumber and UpdatedAt move, guarded by
// Version for optimistic concurrency.
type Order struct {
	ID              string
	OwnerID         string
	Lines           []Line
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	Status          Status
	TrackingNumber  string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Sentinel errors for order operations.
var (
	// ErrEmptyCart is returned when checkout is attempted with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound is returned when an order id matches nothing.
	ErrNotFound = errors.New("order not found")
	// ErrNotAuthorized is returned when the acting party may not perform
	// the operation on this order.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrVersionConflict is returned when a status transition lost a race
	// against a concurrent transition on the same order.
	ErrVersionConflict = errors.New("order was modified concurrently")
)

// InvalidTransitionError indicates a status change the state machine forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// InsufficientStockError indicates checkout asked for more units than remain.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// Stats aggregates the figures shown on the seller income dashboard.
type Stats struct {
	TotalOrders      int64
	CompletedRevenue decimal.Decimal
	ToReleaseAmount  decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// GetByID returns ErrNotFound when the id matches nothing.
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListByOwner returns the owner's orders, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Order, error)
	// ListAll returns all orders, newest first, optionally filtered by
	// status (empty means all).
	ListAll(ctx context.Context, status Status) ([]Order, error)
	// UpdateStatus transitions an order's status if and only if its stored
	// version still equals version (compare-and-swap). A non-empty
	// tracking number replaces the stored one. It returns the updated
	// order, ErrVersionConflict on a lost race, or ErrNotFound.
	UpdateStatus(ctx context.Context, id string, status Status, trackingNumber string, version int64) (*Order, error)
	Stats(ctx context.Context) (*Stats, error)
}
