package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazmart/storefront/internal/domain/cart"
	"github.com/lazmart/storefront/internal/domain/order"
	"github.com/lazmart/storefront/internal/domain/product"
	"github.com/lazmart/storefront/internal/events"
)

// --- In-memory fakes ---

type memCartRepo struct {
	carts map[string]*cart.Cart
}

func (m *memCartRepo) GetByOwner(_ context.Context, ownerID string) (*cart.Cart, error) {
	c, ok := m.carts[ownerID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	return &cp, nil
}

func (m *memCartRepo) Upsert(_ context.Context, c *cart.Cart) error {
	m.carts[c.OwnerID] = c
	return nil
}

type memCache struct{}

func (memCache) Get(context.Context, string) (*cart.Cart, error) { return nil, cart.ErrCacheMiss }
func (memCache) Set(context.Context, string, *cart.Cart) error   { return nil }
func (memCache) Delete(context.Context, string) error            { return nil }

type memProductRepo struct {
	products map[string]*product.Product
}

func (m *memProductRepo) List(_ context.Context, category string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.products {
		if category == "" || p.Category == category {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) Count(context.Context) (int64, error) {
	return int64(len(m.products)), nil
}

func (m *memProductRepo) Upsert(_ context.Context, p *product.Product) error {
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memProductRepo) Delete(_ context.Context, id string) error {
	delete(m.products, id)
	return nil
}

func (m *memProductRepo) DecrementStock(_ context.Context, id string, qty int) error {
	p, ok := m.products[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.Stock < qty {
		return product.ErrInsufficientStock
	}
	p.Stock -= qty
	p.Sold += qty
	return nil
}

func (m *memProductRepo) RestoreStock(_ context.Context, id string, qty int) error {
	if p, ok := m.products[id]; ok {
		p.Stock += qty
		p.Sold -= qty
	}
	return nil
}

type memOrderRepo struct {
	orders map[string]*order.Order
}

func (m *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) ListByOwner(_ context.Context, ownerID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.orders {
		if o.OwnerID == ownerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) ListAll(_ context.Context, status order.Status) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, id string, status order.Status, trackingNumber string, version int64) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Version != version {
		return nil, order.ErrVersionConflict
	}
	o.Status = status
	o.Version++
	if trackingNumber != "" {
		o.TrackingNumber = trackingNumber
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) Stats(context.Context) (*order.Stats, error) {
	st := &order.Stats{
		CompletedRevenue: decimal.Zero,
		ToReleaseAmount:  decimal.Zero,
	}
	for _, o := range m.orders {
		st.TotalOrders++
		if o.Status == order.StatusCompleted {
			st.CompletedRevenue = st.CompletedRevenue.Add(o.Total)
		}
	}
	return st, nil
}

type nopBus struct{}

func (nopBus) Publish(events.Event) {}

// --- Fixture ---

type fixture struct {
	srv      *httptest.Server
	products *memProductRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &memProductRepo{products: map[string]*product.Product{
		"p1": {
			ID:       "p1",
			Name:     "Wireless Headphones",
			Price:    decimal.RequireFromString("149.99"),
			Category: "Electronics",
			Stock:    10,
		},
		"p2": {
			ID:           "p2",
			Name:         "Yoga Mat",
			Price:        decimal.RequireFromString("44.99"),
			SpecialPrice: decimal.RequireFromString("24.99"),
			Category:     "Sports",
			Stock:        5,
		},
	}}

	carts := cart.NewService(&memCartRepo{carts: make(map[string]*cart.Cart)}, memCache{})
	orders := order.NewService(carts, products, &memOrderRepo{orders: make(map[string]*order.Order)}, nopBus{})

	h := New(Config{}, carts, orders, products)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, products: products}
}

type identity struct {
	ownerID string
	seller  bool
}

var (
	buyer   = identity{ownerID: "u1"}
	buyer2  = identity{ownerID: "u2"}
	sellerA = identity{ownerID: "s1", seller: true}
	nobody  = identity{}
)

func (f *fixture) do(t *testing.T, id identity, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if id.ownerID != "" {
		req.Header.Set("X-Owner-Id", id.ownerID)
	}
	if id.seller {
		req.Header.Set("X-Owner-Role", "seller")
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) addToCart(t *testing.T, id identity, productID string, qty int) {
	t.Helper()
	resp := f.do(t, id, http.MethodPost, "/api/v1/cart/items", addItemRequest{ProductID: productID, Quantity: qty})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (f *fixture) checkout(t *testing.T, id identity, method string) orderResponse {
	t.Helper()
	resp := f.do(t, id, http.MethodPost, "/api/v1/orders", checkoutRequest{
		ShippingAddress: order.Address{Name: "Ada", Address: "12 Nguyen Hue", City: "HCMC"},
		PaymentMethod:   method,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[orderResponse](t, resp)
}

// --- Tests ---

func TestProducts_ListAndFilter(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, nobody, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]productResponse](t, resp), 2)

	resp = f.do(t, nobody, http.MethodGet, "/api/v1/products?category=Sports", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[[]productResponse](t, resp)
	require.Len(t, out, 1)
	assert.Equal(t, "p2", out[0].ID)
}

func TestProducts_GetUnknown(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, nobody, http.MethodGet, "/api/v1/products/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCart_RequiresIdentity(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, nobody, http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCart_AddAndMerge(t *testing.T) {
	f := newFixture(t)

	f.addToCart(t, buyer, "p1", 2)
	f.addToCart(t, buyer, "p1", 3)

	resp := f.do(t, buyer, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decode[cartResponse](t, resp)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 5, c.Lines[0].Quantity)
}

func TestCart_AddUnknownProduct(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, buyer, http.MethodPost, "/api/v1/cart/items",
		addItemRequest{ProductID: "ghost", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCart_UpdateMissingItem(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, buyer, http.MethodPatch, "/api/v1/cart/items/ghost",
		updateItemRequest{Quantity: 3})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCart_TotalsUseSpecialPrice(t *testing.T) {
	f := newFixture(t)

	f.addToCart(t, buyer, "p2", 2)

	resp := f.do(t, buyer, http.MethodGet, "/api/v1/cart/totals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	totals := decode[totalsResponse](t, resp)
	assert.True(t, decimal.RequireFromString("49.98").Equal(totals.Subtotal))
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, buyer, http.MethodPost, "/api/v1/orders", checkoutRequest{
		ShippingAddress: order.Address{Name: "Ada", Address: "12 Nguyen Hue"},
		PaymentMethod:   "cod",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckout_InvalidPaymentMethod(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, buyer, "p1", 1)

	resp := f.do(t, buyer, http.MethodPost, "/api/v1/orders", checkoutRequest{
		ShippingAddress: order.Address{Name: "Ada", Address: "12 Nguyen Hue"},
		PaymentMethod:   "wire-transfer",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckout_CODFlow(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, buyer, "p1", 2)

	o := f.checkout(t, buyer, "cod")
	assert.Equal(t, "to-ship", o.Status)
	assert.Equal(t, "cash-on-delivery", o.PaymentMethod)
	assert.True(t, decimal.RequireFromString("329.978").Equal(o.Total))

	// Cart is emptied by checkout.
	resp := f.do(t, buyer, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[cartResponse](t, resp).Lines)

	// Stock moved to sold.
	assert.Equal(t, 8, f.products.products["p1"].Stock)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, buyer, "p2", 6)

	resp := f.do(t, buyer, http.MethodPost, "/api/v1/orders", checkoutRequest{
		ShippingAddress: order.Address{Name: "Ada", Address: "12 Nguyen Hue"},
		PaymentMethod:   "cod",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestOrders_OwnerScoping(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, buyer, "p1", 1)
	o := f.checkout(t, buyer, "online-payment")

	resp := f.do(t, buyer2, http.MethodGet, "/api/v1/orders/"+o.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, buyer, http.MethodGet, "/api/v1/orders/"+o.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOrders_BuyerCancelWindow(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, buyer, "p1", 1)
	pending := f.checkout(t, buyer, "online-payment")

	resp := f.do(t, buyer, http.MethodPost, "/api/v1/orders/"+pending.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", decode[orderResponse](t, resp).Status)

	// COD orders start past the buyer's cancellation window.
	f.addToCart(t, buyer, "p1", 1)
	shipped := f.checkout(t, buyer, "cod")
	resp = f.do(t, buyer, http.MethodPost, "/api/v1/orders/"+shipped.ID+"/cancel", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSeller_RoutesRequireSellerRole(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, buyer, http.MethodGet, "/api/v1/seller/orders", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSeller_OrderLifecycle(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, buyer, "p1", 1)
	o := f.checkout(t, buyer, "cod")

	resp := f.do(t, sellerA, http.MethodPatch, "/api/v1/seller/orders/"+o.ID+"/status",
		updateStatusRequest{Status: "to-receive", TrackingNumber: "VN123456789"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[orderResponse](t, resp)
	assert.Equal(t, "to-receive", updated.Status)
	assert.Equal(t, "VN123456789", updated.TrackingNumber)

	// Jumping back to to-pay is not a legal transition.
	resp = f.do(t, sellerA, http.MethodPatch, "/api/v1/seller/orders/"+o.ID+"/status",
		updateStatusRequest{Status: "to-pay"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSeller_ListOrdersByStatus(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, buyer, "p1", 1)
	f.checkout(t, buyer, "cod")
	f.addToCart(t, buyer2, "p2", 1)
	f.checkout(t, buyer2, "online-payment")

	resp := f.do(t, sellerA, http.MethodGet, "/api/v1/seller/orders?status=to-ship", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]orderResponse](t, resp), 1)

	resp = f.do(t, sellerA, http.MethodGet, "/api/v1/seller/orders?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSeller_ProductCRUD(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, sellerA, http.MethodPost, "/api/v1/seller/products", upsertProductRequest{
		ID:    "p3",
		Name:  "Desk Lamp",
		Price: "59.99",
		Stock: 70,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, nobody, http.MethodGet, "/api/v1/products/p3", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, sellerA, http.MethodDelete, "/api/v1/seller/products/p3", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, nobody, http.MethodGet, "/api/v1/products/p3", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSeller_ProductValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, sellerA, http.MethodPost, "/api/v1/seller/products", upsertProductRequest{
		ID:    "p4",
		Name:  "Freebie",
		Price: "0",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSeller_Stats(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, buyer, "p1", 1)
	f.checkout(t, buyer, "cod")

	resp := f.do(t, sellerA, http.MethodGet, "/api/v1/seller/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[statsResponse](t, resp)
	assert.Equal(t, int64(1), st.TotalOrders)
	assert.Equal(t, int64(2), st.TotalProducts)
}
