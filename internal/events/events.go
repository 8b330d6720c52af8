// Package events is the in-process notification channel between the buyer
// and seller surfaces. Publishing is best-effort: subscribers exist to
// refresh their views early, and every view also re-reads from storage on
// mount, so a lost delivery costs latency, not correctness.
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type identifies an event kind for subscription routing.
type Type string

const (
	TypeOrderCreated       Type = "OrderCreated"
	TypeOrderStatusChanged Type = "OrderStatusChanged"
)

// Event is implemented by all published event payloads.
type Event interface {
	EventType() Type
	// OrderID returns the order the event concerns.
	OrderID() string
}

// OrderCreated is published after a checkout commits.
type OrderCreated struct {
	ID      string          `json:"order_id"`
	OwnerID string          `json:"owner_id"`
	Total   decimal.Decimal `json:"total"`
	Status  string          `json:"status"`
	At      time.Time       `json:"at"`
}

func (OrderCreated) EventType() Type   { return TypeOrderCreated }
func (e OrderCreated) OrderID() string { return e.ID }

// OrderStatusChanged is published after a status transition commits.
type OrderStatusChanged struct {
	ID   string    `json:"order_id"`
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

func (OrderStatusChanged) EventType() Type   { return TypeOrderStatusChanged }
func (e OrderStatusChanged) OrderID() string { return e.ID }
