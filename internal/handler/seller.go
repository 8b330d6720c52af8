package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lazmart/storefront/internal/domain/order"
	"github.com/lazmart/storefront/internal/domain/pricing"
	"github.com/lazmart/storefront/internal/domain/product"
)

type updateStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type upsertProductRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	SpecialPrice string `json:"special_price"`
	Category     string `json:"category"`
	Image        string `json:"image"`
	Stock        int    `json:"stock"`
}

type statsResponse struct {
	TotalOrders      int64           `json:"total_orders"`
	TotalProducts    int64           `json:"total_products"`
	CompletedRevenue decimal.Decimal `json:"completed_revenue"`
	ToReleaseAmount  decimal.Decimal `json:"to_release_amount"`
}

func (h *Handler) sellerListOrders(w http.ResponseWriter, r *http.Request) {
	var status order.Status
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, err := order.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		status = parsed
	}

	orders, err := h.orders.ListAll(r.Context(), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) sellerUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	target, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	o, err := h.orders.AdvanceStatus(r.Context(),
		chi.URLParam(r, "id"), target, req.TrackingNumber, actorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) sellerStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.orders.Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	productCount, err := h.products.Count(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalOrders:      st.TotalOrders,
		TotalProducts:    productCount,
		CompletedRevenue: st.CompletedRevenue,
		ToReleaseAmount:  st.ToReleaseAmount,
	})
}

func (h *Handler) sellerUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req upsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.ID = id
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id and name are required")
		return
	}
	price := pricing.Money(req.Price)
	if !price.IsPositive() {
		writeError(w, http.StatusBadRequest, "invalid_price", "price must be positive")
		return
	}
	if req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "invalid_stock", "stock must not be negative")
		return
	}

	p := &product.Product{
		ID:           req.ID,
		Name:         req.Name,
		Description:  req.Description,
		Price:        price,
		SpecialPrice: pricing.Money(req.SpecialPrice),
		Category:     req.Category,
		Image:        req.Image,
		Stock:        req.Stock,
	}
	if err := h.products.Upsert(r.Context(), p); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(p))
}

func (h *Handler) sellerDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
