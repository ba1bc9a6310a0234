package reconciliation

import (
	"net/http"

	"github.com/georgemunganga/storefront-backend/internal/modules/payment"
	"github.com/georgemunganga/storefront-backend/internal/pkg/httpx"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the public gateway callback endpoints. Both are gated by
// the gateway signature, not by authentication.
type Handler struct{ service *Service }

func NewHandler(service *Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/payments/momo", func(r chi.Router) {
		r.Post("/notify", h.notify) // POST /api/v1/payments/momo/notify
		r.Get("/return", h.ret)     // GET  /api/v1/payments/momo/return
	})
}

// notify always answers 200 so the gateway stops retrying; the body carries the outcome.
func (h *Handler) notify(w http.ResponseWriter, r *http.Request) {
	var n payment.Notification
	if err := httpx.Decode(r, &n); err != nil {
		res := Result{Status: StatusRejected, Message: "malformed notification"}
		h.service.metrics.NotificationHandled(res.Status)
		httpx.Respond(w, http.StatusOK, res)
		return
	}
	httpx.Respond(w, http.StatusOK, h.service.HandleNotification(r.Context(), n))
}

func (h *Handler) ret(w http.ResponseWriter, r *http.Request) {
	target, _ := h.service.HandleReturn(r.Context(), r.URL.Query())
	http.Redirect(w, r, target, http.StatusFound)
}
