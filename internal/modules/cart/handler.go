package cart

import (
	"net/http"

	"github.com/georgemunganga/storefront-backend/internal/modules/auth"
	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/georgemunganga/storefront-backend/internal/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes the caller's cart.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(authn)
		r.Get("/", h.get)                         // GET    /api/v1/cart
		r.Put("/lines", h.upsert)                 // PUT    /api/v1/cart/lines
		r.Delete("/lines/{product_id}", h.remove) // DELETE /api/v1/cart/lines/{product_id}
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	lines, err := h.service.Lines(r.Context(), p.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"lines": lines})
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req UpsertLineRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	line, err := h.service.Upsert(r.Context(), p.UserID, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, line)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "product_id"))
	if err != nil {
		httpx.WriteError(w, r, apperr.Validation("invalid product id"))
		return
	}
	if err := h.service.Remove(r.Context(), p.UserID, id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
