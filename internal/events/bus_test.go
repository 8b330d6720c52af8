package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testCreated(id string) OrderCreated {
	return OrderCreated{
		ID:      id,
		OwnerID: "u1",
		Total:   decimal.RequireFromString("264"),
		Status:  "to-pay",
		At:      time.Now().UTC(),
	}
}

func TestBus_DeliversToSubscriber(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	got := make(chan Event, 1)
	bus.Subscribe(TypeOrderCreated, func(e Event) { got <- e })

	bus.Publish(testCreated("o1"))

	select {
	case e := <-got:
		assert.Equal(t, "o1", e.OrderID())
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBus_RoutesByType(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	created := make(chan Event, 1)
	changed := make(chan Event, 1)
	bus.Subscribe(TypeOrderCreated, func(e Event) { created <- e })
	bus.Subscribe(TypeOrderStatusChanged, func(e Event) { changed <- e })

	bus.Publish(OrderStatusChanged{ID: "o1", From: "to-pay", To: "to-ship", At: time.Now()})

	select {
	case e := <-changed:
		assert.Equal(t, TypeOrderStatusChanged, e.EventType())
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
	select {
	case <-created:
		t.Fatal("event delivered to wrong subscriber")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	const subscribers = 3
	got := make(chan Event, subscribers)
	for range subscribers {
		bus.Subscribe(TypeOrderCreated, func(e Event) { got <- e })
	}

	bus.Publish(testCreated("o1"))

	for range subscribers {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("not every subscriber received the event")
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	got := make(chan Event, 1)
	unsubscribe := bus.Subscribe(TypeOrderCreated, func(e Event) { got <- e })
	unsubscribe()
	unsubscribe() // second call is harmless

	bus.Publish(testCreated("o1"))

	select {
	case <-got:
		t.Fatal("unsubscribed handler received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_PanickingHandlerDoesNotStopPeers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	got := make(chan Event, 1)
	bus.Subscribe(TypeOrderCreated, func(Event) { panic("boom") })
	bus.Subscribe(TypeOrderCreated, func(e Event) { got <- e })

	bus.Publish(testCreated("o1"))

	select {
	case e := <-got:
		require.Equal(t, "o1", e.OrderID())
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber was not reached")
	}
}

func TestBus_PublishWithNoSubscribers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	// Must not panic or block.
	bus.Publish(testCreated("o1"))
}
