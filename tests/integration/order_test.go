//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func testShippingAddress() shippingAddress {
	return shippingAddress{
		Name:    "Ada Lovelace",
		Phone:   "+84 90 000 0000",
		Address: "12 Nguyen Hue",
		City:    "Ho Chi Minh City",
		ZipCode: "700000",
	}
}

func placeOrder(t *testing.T, buyer identity, productID string, qty int, paymentMethod string) orderResponse {
	t.Helper()

	resp := doRequest(t, buyer, http.MethodPost, "/api/v1/cart/items",
		addItemRequest{ProductID: productID, Quantity: qty})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add item: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, buyer, http.MethodPost, "/api/v1/orders",
		checkoutRequest{ShippingAddress: testShippingAddress(), PaymentMethod: paymentMethod})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d", resp.StatusCode)
	}
	defer resp.Body.Close()
	return decodeJSON[orderResponse](t, resp)
}

func TestCheckout_EmptyCart(t *testing.T) {
	buyer := identity{ownerID: "it-order-empty"}

	resp := doRequest(t, buyer, http.MethodPost, "/api/v1/orders",
		checkoutRequest{ShippingAddress: testShippingAddress(), PaymentMethod: "cod"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Code != "empty_cart" {
		t.Errorf("expected code empty_cart, got %q", body.Code)
	}
}

func TestCheckout_OnlinePayment(t *testing.T) {
	buyer := identity{ownerID: "it-order-online"}
	o := placeOrder(t, buyer, "wireless-headphones", 2, "online-payment")

	if !uuidPattern.MatchString(o.ID) {
		t.Errorf("order id is not a UUID: %q", o.ID)
	}
	if o.Status != "to-pay" {
		t.Errorf("expected status to-pay, got %q", o.Status)
	}
	// 2 × 99.99 special price, plus 10%% tax.
	if o.Total != "219.978" {
		t.Errorf("expected total 219.978, got %q", o.Total)
	}

	// Checkout empties the cart.
	resp := doRequest(t, buyer, http.MethodGet, "/api/v1/cart", nil)
	defer resp.Body.Close()
	cart := decodeJSON[cartResponse](t, resp)
	if len(cart.Lines) != 0 {
		t.Errorf("expected empty cart after checkout, got %d lines", len(cart.Lines))
	}
}

func TestCheckout_CashOnDelivery(t *testing.T) {
	buyer := identity{ownerID: "it-order-cod"}
	o := placeOrder(t, buyer, "coffee-maker", 1, "cod")

	if o.Status != "to-ship" {
		t.Errorf("expected status to-ship, got %q", o.Status)
	}
}

func TestOrder_OwnerScoping(t *testing.T) {
	buyer := identity{ownerID: "it-order-owner"}
	other := identity{ownerID: "it-order-other"}
	o := placeOrder(t, buyer, "laptop-stand", 1, "cod")

	resp := doRequest(t, other, http.MethodGet, "/api/v1/orders/"+o.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign order, got %d", resp.StatusCode)
	}

	resp = doRequest(t, buyer, http.MethodGet, "/api/v1/orders/"+o.ID, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for own order, got %d", resp.StatusCode)
	}
}

func TestOrder_BuyerCancelPending(t *testing.T) {
	buyer := identity{ownerID: "it-order-cancel"}
	o := placeOrder(t, buyer, "smart-watch", 1, "online-payment")

	resp := doRequest(t, buyer, http.MethodPost, "/api/v1/orders/"+o.ID+"/cancel", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	cancelled := decodeJSON[orderResponse](t, resp)
	if cancelled.Status != "cancelled" {
		t.Errorf("expected status cancelled, got %q", cancelled.Status)
	}
}

func TestOrder_BuyerCannotCancelShipped(t *testing.T) {
	buyer := identity{ownerID: "it-order-nocancel"}
	o := placeOrder(t, buyer, "running-shoes", 1, "cod")

	resp := doRequest(t, buyer, http.MethodPost, "/api/v1/orders/"+o.ID+"/cancel", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSeller_Lifecycle(t *testing.T) {
	buyer := identity{ownerID: "it-seller-flow"}
	seller := identity{ownerID: "it-seller", seller: true}
	o := placeOrder(t, buyer, "yoga-mat", 1, "cod")

	// Buyers may not drive the lifecycle.
	resp := doRequest(t, buyer, http.MethodPatch, "/api/v1/seller/orders/"+o.ID+"/status",
		updateStatusRequest{Status: "to-receive"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer, got %d", resp.StatusCode)
	}

	resp = doRequest(t, seller, http.MethodPatch, "/api/v1/seller/orders/"+o.ID+"/status",
		updateStatusRequest{Status: "to-receive", TrackingNumber: "VN123456789"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	shipped := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if shipped.Status != "to-receive" {
		t.Errorf("expected status to-receive, got %q", shipped.Status)
	}
	if shipped.TrackingNumber != "VN123456789" {
		t.Errorf("expected tracking number, got %q", shipped.TrackingNumber)
	}

	// Skipping states is rejected.
	resp = doRequest(t, seller, http.MethodPatch, "/api/v1/seller/orders/"+o.ID+"/status",
		updateStatusRequest{Status: "to-pay"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Code != "invalid_transition" {
		t.Errorf("expected code invalid_transition, got %q", body.Code)
	}
}

func TestSeller_Stats(t *testing.T) {
	seller := identity{ownerID: "it-seller-stats", seller: true}

	resp := doRequest(t, seller, http.MethodGet, "/api/v1/seller/stats", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stats := decodeJSON[map[string]any](t, resp)
	for _, key := range []string{"total_orders", "total_products", "completed_revenue", "to_release_amount"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}
}
