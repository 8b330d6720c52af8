package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lazmart/storefront/internal/domain/product"
)

type productResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	SpecialPrice decimal.Decimal `json:"special_price"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	Stock        int             `json:"stock"`
	Sold         int             `json:"sold"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	items, err := h.products.List(r.Context(), category)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]productResponse, len(items))
	for i, p := range items {
		out[i] = h.toProductResponse(&p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(p))
}

func (h *Handler) toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		SpecialPrice: p.SpecialPrice,
		Category:     p.Category,
		Image:        h.imageURL(p.Image),
		Stock:        p.Stock,
		Sold:         p.Sold,
		CreatedAt:    p.CreatedAt,
	}
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
