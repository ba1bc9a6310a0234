package inventory

import (
	"net/http"

	"github.com/georgemunganga/storefront-backend/internal/modules/auth"
	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/georgemunganga/storefront-backend/internal/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes the admin stock correction endpoint.
type Handler struct{ ledger Ledger }

func NewHandler(ledger Ledger) *Handler { return &Handler{ledger: ledger} }

func (h *Handler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/api/v1/admin/inventory", func(r chi.Router) {
		r.Use(authn, auth.RequireRole(auth.RoleAdmin))
		r.Post("/{product_id}/adjust", h.adjust) // POST /api/v1/admin/inventory/{product_id}/adjust
	})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "product_id"))
	if err != nil {
		httpx.WriteError(w, r, apperr.Validation("invalid product id"))
		return
	}
	var req AdjustRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if req.Delta == 0 {
		httpx.WriteError(w, r, apperr.Validation("delta must not be zero"))
		return
	}
	applied, err := h.ledger.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	status := http.StatusOK
	if !applied {
		status = http.StatusConflict
	}
	httpx.Respond(w, status, AdjustResponse{ProductID: id, Delta: req.Delta, Applied: applied})
}
