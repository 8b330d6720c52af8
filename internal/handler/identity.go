package handler

import (
	"context"
	"net/http"

	"github.com/lazmart/storefront/internal/domain/order"
)

// Identity headers set by the edge proxy after it validates the session.
// This service trusts them as-is; token validation happens upstream.
const (
	headerOwnerID = "X-Owner-Id"
	headerRole    = "X-Owner-Role"

	roleSeller = "seller"
)

type actorKey struct{}

// RequireIdentity rejects requests that carry no owner identity and stores
// the resolved actor in the request context for handlers downstream.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.Header.Get(headerOwnerID)
		if ownerID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
			return
		}

		actor := order.Actor{
			ID:     ownerID,
			Seller: r.Header.Get(headerRole) == roleSeller,
		}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSeller guards the seller console routes.
func requireSeller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r.Context()).Seller {
			writeError(w, http.StatusForbidden, "forbidden", "seller role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(ctx context.Context) order.Actor {
	actor, _ := ctx.Value(actorKey{}).(order.Actor)
	return actor
}
