// Package handler exposes the storefront over HTTP. Routing is chi; request
// identity arrives in trusted headers set by the edge proxy.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lazmart/storefront/internal/domain/cart"
	"github.com/lazmart/storefront/internal/domain/order"
	"github.com/lazmart/storefront/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses. When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Handler wires HTTP routes to the domain services.
type Handler struct {
	carts        *cart.Service
	orders       *order.Service
	products     product.Repository
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, carts *cart.Service, orders *order.Service, products product.Repository) *Handler {
	return &Handler{
		carts:        carts,
		orders:       orders,
		products:     products,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes builds the full route tree.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		// Catalog browsing needs no identity.
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.getCart)
				r.Delete("/", h.clearCart)
				r.Get("/totals", h.getCartTotals)
				r.Post("/items", h.addCartItem)
				r.Patch("/items/{itemID}", h.updateCartItem)
				r.Delete("/items/{itemID}", h.removeCartItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.checkout)
				r.Get("/", h.listOrders)
				r.Get("/{id}", h.getOrder)
				r.Post("/{id}/cancel", h.cancelOrder)
			})

			r.Route("/seller", func(r chi.Router) {
				r.Use(requireSeller)

				r.Get("/orders", h.sellerListOrders)
				r.Patch("/orders/{id}/status", h.sellerUpdateOrderStatus)
				r.Get("/stats", h.sellerStats)

				r.Post("/products", h.sellerUpsertProduct)
				r.Put("/products/{id}", h.sellerUpsertProduct)
				r.Delete("/products/{id}", h.sellerDeleteProduct)
			})
		})
	})

	return r
}
