package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Field orders of the gateway's signed strings. They are part of the
// gateway's protocol and differ between the two directions.
var (
	DefaultRequestFields = []string{
		"accessKey", "amount", "extraData", "ipnUrl", "orderId",
		"orderInfo", "partnerCode", "redirectUrl", "requestId", "requestType",
	}
	DefaultNotificationFields = []string{
		"accessKey", "amount", "extraData", "message", "orderId", "orderInfo",
		"orderType", "partnerCode", "payType", "requestId", "responseTime",
		"resultCode", "transId",
	}
)

// Signer computes HMAC-SHA256 signatures over "k1=v1&k2=v2..." strings.
type Signer struct {
	accessKey     string
	secretKey     []byte
	requestFields []string
	notifyFields  []string
}

// NewSigner creates a signer. Empty field lists fall back to the defaults.
func NewSigner(accessKey, secretKey string, requestFields, notifyFields []string) *Signer {
	if len(requestFields) == 0 {
		requestFields = DefaultRequestFields
	}
	if len(notifyFields) == 0 {
		notifyFields = DefaultNotificationFields
	}
	return &Signer{
		accessKey:     accessKey,
		secretKey:     []byte(secretKey),
		requestFields: requestFields,
		notifyFields:  notifyFields,
	}
}

// RawString joins values in the given field order. Every field must be present.
func (s *Signer) RawString(fields []string, values map[string]string) (string, error) {
	var b strings.Builder
	for i, f := range fields {
		v, ok := values[f]
		if f == "accessKey" {
			v, ok = s.accessKey, true
		}
		if !ok {
			return "", fmt.Errorf("signature field %q has no value", f)
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String(), nil
}

func (s *Signer) hmacHex(raw string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest signs an outbound create-payment request.
func (s *Signer) SignRequest(values map[string]string) (string, error) {
	raw, err := s.RawString(s.requestFields, values)
	if err != nil {
		return "", err
	}
	return s.hmacHex(raw), nil
}

// SignNotification computes the signature the gateway should have sent for n.
func (s *Signer) SignNotification(n Notification) (string, error) {
	raw, err := s.RawString(s.notifyFields, n.fields())
	if err != nil {
		return "", err
	}
	return s.hmacHex(raw), nil
}

// VerifyNotification reports whether n carries a valid signature. It never panics.
func (s *Signer) VerifyNotification(n Notification) bool {
	if n.Signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(n.Signature))
	if err != nil {
		return false
	}
	want, err := s.SignNotification(n)
	if err != nil {
		return false
	}
	wantBytes, _ := hex.DecodeString(want)
	return hmac.Equal(got, wantBytes)
}

// ── order reference carried in extraData ──────────────────────────────────────

type extraData struct {
	OrderID string `json:"orderId"`
}

// EncodeOrderRef packs the internal order id into the gateway's extraData field.
func EncodeOrderRef(orderID string) string {
	b, _ := json.Marshal(extraData{OrderID: orderID})
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeOrderRef extracts the internal order id from extraData, or "" if absent or malformed.
func DecodeOrderRef(s string) string {
	if s == "" {
		return ""
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ""
	}
	var d extraData
	if err := json.Unmarshal(b, &d); err != nil {
		return ""
	}
	return d.OrderID
}
