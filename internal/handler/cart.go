package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lazmart/storefront/internal/domain/cart"
	"github.com/lazmart/storefront/internal/domain/pricing"
)

type addItemRequest struct {
	ProductID string            `json:"product_id"`
	Variation map[string]string `json:"variation,omitempty"`
	Quantity  int               `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type totalsResponse struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type cartResponse struct {
	OwnerID string         `json:"owner_id"`
	Lines   []cart.Line    `json:"lines"`
	Totals  totalsResponse `json:"totals"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	return cartResponse{
		OwnerID: c.OwnerID,
		Lines:   append([]cart.Line{}, c.Lines...),
		Totals:  toTotalsResponse(c.Totals()),
	}
}

func toTotalsResponse(t pricing.Totals) totalsResponse {
	return totalsResponse{Subtotal: t.Subtotal, Tax: t.Tax, Total: t.Total}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "product_id is required")
		return
	}

	// Denormalize catalog fields into the line so the cart renders without
	// further product lookups.
	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	c, err := h.carts.AddItem(r.Context(), actorFrom(r.Context()).ID, cart.Line{
		ProductID:    p.ID,
		Name:         p.Name,
		Category:     p.Category,
		Image:        p.Image,
		Variation:    req.Variation,
		UnitPrice:    p.Price,
		SpecialPrice: p.SpecialPrice,
		Quantity:     req.Quantity,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResponse(c))
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.carts.UpdateQuantity(r.Context(),
		actorFrom(r.Context()).ID, chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(),
		actorFrom(r.Context()).ID, chi.URLParam(r, "itemID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), actorFrom(r.Context()).ID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCartTotals(w http.ResponseWriter, r *http.Request) {
	t, err := h.carts.Totals(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalsResponse(t))
}
