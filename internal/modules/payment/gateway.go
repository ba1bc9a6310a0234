package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/georgemunganga/storefront-backend/internal/pkg/logging"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Gateway is the provider-agnostic interface the order pipeline and the
// reconciliation handler depend on.
type Gateway interface {
	// BuildPaymentRequest signs and sends a create-payment request. A non-zero
	// gateway result code is returned as a Gateway error.
	BuildPaymentRequest(ctx context.Context, req PaymentRequest) (*PaymentInit, error)

	// VerifyNotificationSignature reports whether a callback was signed by the gateway.
	VerifyNotificationSignature(n Notification) bool
}

// MomoConfig configures the MoMo adapter.
type MomoConfig struct {
	Endpoint    string
	PartnerCode string
	RequestType string
	Lang        string
	Timeout     time.Duration
}

type momoGateway struct {
	cfg     MomoConfig
	signer  *Signer
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*createResponse]
	metrics *metrics.Registry
}

// NewMomoGateway creates the adapter. client may be nil; m may be nil.
func NewMomoGateway(cfg MomoConfig, signer *Signer, client *http.Client, m *metrics.Registry) Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestType == "" {
		cfg.RequestType = "captureWallet"
	}
	if cfg.Lang == "" {
		cfg.Lang = "vi"
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	breaker := gobreaker.NewCircuitBreaker[*createResponse](gobreaker.Settings{
		Name:        "momo-create",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &momoGateway{cfg: cfg, signer: signer, client: client, breaker: breaker, metrics: m}
}

func (g *momoGateway) BuildPaymentRequest(ctx context.Context, req PaymentRequest) (*PaymentInit, error) {
	ctx, span := otel.Tracer("payment").Start(ctx, "momo.create_payment")
	defer span.End()
	span.SetAttributes(attribute.String("order.code", req.OrderCode), attribute.Int64("order.amount", req.Amount))

	if req.OrderCode == "" || req.Amount <= 0 {
		return nil, apperr.Validation("order code and positive amount are required")
	}

	body := createRequest{
		PartnerCode: g.cfg.PartnerCode,
		RequestID:   uuid.NewString(),
		Amount:      req.Amount,
		OrderID:     req.OrderCode,
		OrderInfo:   req.OrderInfo,
		RedirectURL: req.RedirectURL,
		IPNURL:      req.IPNURL,
		RequestType: g.cfg.RequestType,
		ExtraData:   EncodeOrderRef(req.OrderRef),
		Lang:        g.cfg.Lang,
	}
	sig, err := g.signer.SignRequest(map[string]string{
		"amount":      strconv.FormatInt(body.Amount, 10),
		"extraData":   body.ExtraData,
		"ipnUrl":      body.IPNURL,
		"orderId":     body.OrderID,
		"orderInfo":   body.OrderInfo,
		"partnerCode": body.PartnerCode,
		"redirectUrl": body.RedirectURL,
		"requestId":   body.RequestID,
		"requestType": body.RequestType,
	})
	if err != nil {
		return nil, apperr.Internal("sign payment request", err)
	}
	body.Signature = sig

	resp, err := g.breaker.Execute(func() (*createResponse, error) {
		return g.post(ctx, body)
	})
	g.metrics.GatewayRequest(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway call failed")
		logging.FromContext(ctx).Error("gateway_request_failed",
			zap.String("order_code", req.OrderCode), zap.Error(err))
		return nil, apperr.Gateway("payment gateway unavailable", err)
	}

	code, err := resp.ResultCode.Int()
	if err != nil || code != 0 {
		span.SetStatus(codes.Error, "gateway rejected request")
		logging.FromContext(ctx).Warn("gateway_request_rejected",
			zap.String("order_code", req.OrderCode),
			zap.String("result_code", resp.ResultCode.String()),
			zap.String("message", resp.Message))
		return nil, apperr.Gateway(
			fmt.Sprintf("payment gateway rejected request (resultCode=%s): %s", resp.ResultCode, resp.Message), nil)
	}
	if resp.PayURL == "" {
		return nil, apperr.Gateway("payment gateway returned no pay url", nil)
	}

	return &PaymentInit{
		PayURL:        resp.PayURL,
		TransactionID: body.RequestID,
		QRCodeURL:     resp.QRCodeURL,
	}, nil
}

// post performs the HTTP exchange. Only transport failures and 5xx responses
// are errors here, so business rejections never trip the breaker.
func (g *momoGateway) post(ctx context.Context, body createRequest) (*createResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gateway returned HTTP %d", res.StatusCode)
	}
	var out createResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode gateway response (HTTP %d): %w", res.StatusCode, err)
	}
	return &out, nil
}

func (g *momoGateway) VerifyNotificationSignature(n Notification) bool {
	return g.signer.VerifyNotification(n)
}
