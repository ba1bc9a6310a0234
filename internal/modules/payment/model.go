package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Provider names a supported payment gateway.
type Provider string

const ProviderMomo Provider = "MOMO"

// PaymentRequest is what the order pipeline asks the gateway to collect.
// Amount is in minor currency units.
type PaymentRequest struct {
	OrderCode   string
	OrderRef    string // internal order id, echoed back through extraData
	Amount      int64
	OrderInfo   string
	RedirectURL string
	IPNURL      string
}

// PaymentInit is the gateway's synchronous answer to a PaymentRequest.
type PaymentInit struct {
	PayURL        string `json:"pay_url"`
	TransactionID string `json:"transaction_id"`
	QRCodeURL     string `json:"qr_code_url,omitempty"`
}

// Value is a gateway scalar that may arrive as a JSON string or number. The
// literal text is kept so signatures are computed over exactly what was sent.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*v = Value(n.String())
	return nil
}

func (v Value) String() string { return string(v) }

// Int parses the value as an integer.
func (v Value) Int() (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
}

// Notification is the gateway's IPN callback, also carried as query
// parameters on the return redirect.
type Notification struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       Value  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      Value  `json:"transId"`
	ResultCode   Value  `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime Value  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// NotificationFromQuery reads a Notification from return-redirect query parameters.
func NotificationFromQuery(q url.Values) Notification {
	return Notification{
		PartnerCode:  q.Get("partnerCode"),
		OrderID:      q.Get("orderId"),
		RequestID:    q.Get("requestId"),
		Amount:       Value(q.Get("amount")),
		OrderInfo:    q.Get("orderInfo"),
		OrderType:    q.Get("orderType"),
		TransID:      Value(q.Get("transId")),
		ResultCode:   Value(q.Get("resultCode")),
		Message:      q.Get("message"),
		PayType:      q.Get("payType"),
		ResponseTime: Value(q.Get("responseTime")),
		ExtraData:    q.Get("extraData"),
		Signature:    q.Get("signature"),
	}
}

// Succeeded reports whether the gateway result code is zero.
func (n Notification) Succeeded() bool {
	code, err := n.ResultCode.Int()
	return err == nil && code == 0
}

// fields exposes the signable values by their wire names.
func (n Notification) fields() map[string]string {
	return map[string]string{
		"amount":       n.Amount.String(),
		"extraData":    n.ExtraData,
		"message":      n.Message,
		"orderId":      n.OrderID,
		"orderInfo":    n.OrderInfo,
		"orderType":    n.OrderType,
		"partnerCode":  n.PartnerCode,
		"payType":      n.PayType,
		"requestId":    n.RequestID,
		"responseTime": n.ResponseTime.String(),
		"resultCode":   n.ResultCode.String(),
		"transId":      n.TransID.String(),
	}
}

// ── gateway wire DTOs ─────────────────────────────────────────────────────────

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type createResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       Value  `json:"amount"`
	ResponseTime Value  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   Value  `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink"`
	QRCodeURL    string `json:"qrCodeUrl"`
}
