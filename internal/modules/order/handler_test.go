package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/modules/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t      *testing.T
	router chi.Router
	issuer *auth.Issuer
}

func newAPI(t *testing.T, h *harness) *api {
	issuer := auth.NewIssuer("test-secret", time.Hour)
	r := chi.NewRouter()
	NewHandler(h.svc).RegisterRoutes(r, auth.Authenticate(issuer))
	return &api{t: t, router: r, issuer: issuer}
}

func (a *api) do(method, path, userID, role, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if userID != "" {
		token, err := a.issuer.Issue(userID, role)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCheckoutFlow(t *testing.T) {
	h := newHarness(t)
	lamp := h.product(t, "Lamp", 2500, 3)
	a := newAPI(t, h)

	body := `{"source":"buy_now","items":[{"product_id":"` + lamp.String() + `","quantity":2}],` +
		`"shipping_address":{"city":"Kitwe"},"payment_method":"GATEWAY"}`

	rec := a.do(http.MethodPost, "/api/v1/orders/preview", "u1", auth.RoleCustomer, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, int64(5000), preview.Total)

	rec = a.do(http.MethodPost, "/api/v1/orders", "u1", auth.RoleCustomer, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.PaymentURL)
	assert.NotEmpty(t, created.QRCodeURL)

	rec = a.do(http.MethodPost, "/api/v1/orders", "u2", auth.RoleCustomer, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INSUFFICIENT_STOCK")

	rec = a.do(http.MethodGet, "/api/v1/orders/"+created.ID.String(), "u2", auth.RoleCustomer, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/orders?limit=5", "u1", auth.RoleCustomer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page PageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)
	assert.Nil(t, page.Orders[0].ShippingAddress)

	rec = a.do(http.MethodPost, "/api/v1/orders/"+created.ID.String()+"/cancel", "u1", auth.RoleCustomer, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, h.stock(t, lamp))

	rec = a.do(http.MethodPost, "/api/v1/orders/"+created.ID.String()+"/cancel", "u1", auth.RoleCustomer, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerCancelReadsChunkedBody(t *testing.T) {
	h := newHarness(t)
	lamp := h.product(t, "Lamp", 2500, 3)
	a := newAPI(t, h)
	o, err := h.svc.CreateOrder(context.Background(), "u1", buyNow("COD", item(lamp, 1)))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+o.ID.String()+"/cancel",
		strings.NewReader(`{"reason":"ordered twice"}`))
	req.ContentLength = -1
	token, err := a.issuer.Issue("u1", auth.RoleCustomer)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cancelled Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "ordered twice", cancelled.CancelReason)
}

func TestHandlerAdminRoutes(t *testing.T) {
	h := newHarness(t)
	lamp := h.product(t, "Lamp", 2500, 3)
	a := newAPI(t, h)
	o, err := h.svc.CreateOrder(context.Background(), "u1", buyNow("COD", item(lamp, 1)))
	require.NoError(t, err)
	path := "/api/v1/admin/orders/" + o.ID.String()

	rec := a.do(http.MethodPatch, path+"/status", "u1", auth.RoleCustomer, `{"status":"CONFIRMED"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPatch, path+"/status", "", "", `{"status":"CONFIRMED"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPatch, path+"/status", "root", auth.RoleAdmin, `{"status":"CONFIRMED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPatch, path+"/status", "root", auth.RoleAdmin, `{"status":"DELIVERED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TRANSITION")

	rec = a.do(http.MethodPatch, path+"/payment-status", "root", auth.RoleAdmin, `{"payment_status":"PAID"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/admin/orders?status=confirmed", "root", auth.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page PageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Orders, 1)
	assert.Equal(t, PaymentPaid, page.Orders[0].PaymentStatus)

	rec = a.do(http.MethodGet, "/api/v1/admin/orders?status=lost", "root", auth.RoleAdmin, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPatch, "/api/v1/admin/orders/"+uuid.NewString()+"/status", "root", auth.RoleAdmin, `{"status":"CONFIRMED"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPatch, "/api/v1/admin/orders/nope/status", "root", auth.RoleAdmin, `{"status":"CONFIRMED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
