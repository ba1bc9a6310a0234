package order

import (
	"net/http"

	"github.com/georgemunganga/storefront-backend/internal/modules/auth"
	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/georgemunganga/storefront-backend/internal/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes order HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts customer and admin order routes behind authn.
func (h *Handler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(authn)
		r.Post("/preview", h.preview)    // POST /api/v1/orders/preview
		r.Post("/", h.createOrder)       // POST /api/v1/orders
		r.Get("/", h.listMine)           // GET  /api/v1/orders?page=1&limit=10&status=PENDING
		r.Get("/{id}", h.getOrder)       // GET  /api/v1/orders/{id}
		r.Post("/{id}/cancel", h.cancel) // POST /api/v1/orders/{id}/cancel
	})

	r.Route("/api/v1/admin/orders", func(r chi.Router) {
		r.Use(authn, auth.RequireRole(auth.RoleAdmin))
		r.Get("/", h.listAll)                                  // GET   /api/v1/admin/orders
		r.Patch("/{id}/status", h.updateStatus)                // PATCH /api/v1/admin/orders/{id}/status
		r.Patch("/{id}/payment-status", h.updatePaymentStatus) // PATCH /api/v1/admin/orders/{id}/payment-status
	})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req PreviewRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out, err := h.service.Preview(r.Context(), p.UserID, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, out)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req CreateOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	o, err := h.service.CreateOrder(r.Context(), p.UserID, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, o)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	q, err := listQuery(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	page, err := h.service.ListMine(r.Context(), p.UserID, q)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, page)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	page, err := h.service.ListAll(r.Context(), q)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, page)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := orderID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	o, err := h.service.GetOrder(r.Context(), p, id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, o)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := orderID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var req CancelRequest
	if err := httpx.DecodeOptional(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	o, err := h.service.Cancel(r.Context(), p, id, req.Reason)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, o)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var req UpdateStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	o, err := h.service.UpdateStatus(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, o)
}

func (h *Handler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var req UpdatePaymentStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	o, err := h.service.UpdatePaymentStatus(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, o)
}

func orderID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid order id")
	}
	return id, nil
}

func listQuery(r *http.Request) (ListQuery, error) {
	q := ListQuery{
		Page:  httpx.QueryInt(r, "page", 1),
		Limit: httpx.QueryInt(r, "limit", defaultLimit),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := ParseStatus(raw)
		if !ok {
			return ListQuery{}, apperr.Validation("unknown status filter")
		}
		q.Status = st
	}
	return q, nil
}
