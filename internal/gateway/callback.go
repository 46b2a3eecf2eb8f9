// Package gateway turns loosely shaped provider callbacks into settlement input.
// Payme, Click, Uzum and Paynet each name their fields differently and may
// send them as query string, JSON or form body.
package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"km-backend/internal/models"
)

// MinorUnitThreshold is the amount at or above which a callback amount is
// read as tiyin (1/100 so'm) instead of so'm.
const MinorUnitThreshold = 10_000_000

const maxCallbackBody = 1 << 20

var (
	checkoutIDKeys     = []string{"checkoutId", "checkout_id", "merchant_trans_id", "account.checkout_id", "account[checkout_id]", "orderId", "order_id"}
	tokenKeys          = []string{"token", "callbackToken", "callback_token"}
	externalTxnIDKeys  = []string{"transactionId", "transaction_id", "payment_id", "provider_txn_id"}
	externalStatusKeys = []string{"status", "state", "payment_status"}
	amountKeys         = []string{"amount", "amount_paid", "sum", "summa", "amount_tiyin"}
	successKeys        = []string{"success", "paid", "status", "state"}
)

var successValues = map[string]bool{
	"1": true, "true": true, "paid": true, "success": true, "ok": true, "completed": true, "done": true,
}

var failValues = map[string]bool{
	"0": true, "false": true, "failed": true, "error": true, "canceled": true, "cancelled": true, "declined": true,
}

// CallbackFields is the settlement-relevant part of a provider callback
type CallbackFields struct {
	CheckoutID     string
	CallbackToken  string
	ExternalTxnID  *string
	ExternalStatus *string
	AmountPaid     *int64
	Success        *bool // nil when the provider did not say
}

// ParseProvider accepts a provider name in any case
func ParseProvider(value string) (models.PaymentProvider, bool) {
	switch p := models.PaymentProvider(strings.ToUpper(strings.TrimSpace(value))); p {
	case models.ProviderPayme, models.ProviderClick, models.ProviderUzum, models.ProviderPaynet:
		return p, true
	}
	return "", false
}

// ReadCallbackPayload merges query parameters with the POST body.
// Body fields win over query fields; unreadable bodies are ignored.
func ReadCallbackPayload(r *http.Request) map[string]any {
	payload := make(map[string]any)

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			payload[key] = values[len(values)-1]
		}
	}

	if r.Method != http.MethodPost || r.Body == nil {
		return payload
	}

	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "application/json"):
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			return payload
		}
		var obj map[string]any
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			return payload
		}
		for key, value := range obj {
			payload[key] = value
		}

	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxCallbackBody); err != nil {
			return payload
		}
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				payload[key] = values[len(values)-1]
			}
		}
		for key, files := range r.MultipartForm.File {
			if len(files) > 0 {
				payload[key] = files[len(files)-1].Filename
			}
		}

	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			return payload
		}
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return payload
		}
		for key, vals := range values {
			if len(vals) > 0 {
				payload[key] = vals[len(vals)-1]
			}
		}
	}

	return payload
}

// ExtractCallbackFields picks the first non-empty value for every logical field
func ExtractCallbackFields(payload map[string]any) CallbackFields {
	fields := CallbackFields{
		CheckoutID:     pickString(payload, checkoutIDKeys),
		CallbackToken:  pickString(payload, tokenKeys),
		ExternalTxnID:  optional(pickString(payload, externalTxnIDKeys)),
		ExternalStatus: optional(pickString(payload, externalStatusKeys)),
	}

	if amount, ok := ParseAmount(pickString(payload, amountKeys)); ok {
		fields.AmountPaid = &amount
	}

	if raw := strings.ToLower(pickString(payload, successKeys)); raw != "" {
		if successValues[raw] {
			v := true
			fields.Success = &v
		}
		if failValues[raw] {
			v := false
			fields.Success = &v
		}
	}

	return fields
}

// RedactPayload returns a copy of the payload without the callback token,
// safe to store next to the checkout or in the archive
func RedactPayload(payload map[string]any) map[string]any {
	redacted := make(map[string]any, len(payload))
	for key, value := range payload {
		redacted[key] = value
	}
	for _, key := range tokenKeys {
		delete(redacted, key)
	}
	return redacted
}

// ParseAmount reads a provider amount, ignoring currency symbols and separators.
// Non-positive or unreadable amounts are reported as absent.
func ParseAmount(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	normalized := strings.TrimSpace(b.String())
	if normalized == "" {
		return 0, false
	}

	n, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return 0, false
	}

	return NormalizeMinorUnits(n)
}

// NormalizeMinorUnits converts a positive amount to whole so'm. Values at or
// above MinorUnitThreshold are assumed to be tiyin and divided by 100. This is
// a guess about provider conventions, not a documented contract. Amounts that
// do not fit in an int64 are reported as absent.
func NormalizeMinorUnits(n float64) (int64, bool) {
	if n >= MinorUnitThreshold {
		n /= 100
	}
	// float64(math.MaxInt64) rounds up to 2^63, anything below it converts without wrapping
	if n >= float64(math.MaxInt64) {
		return 0, false
	}
	return int64(math.Floor(n)), true
}

func pickString(payload map[string]any, keys []string) string {
	for _, key := range keys {
		value, ok := lookup(payload, key)
		if !ok {
			continue
		}
		if s := stringify(value); s != "" {
			return s
		}
	}
	return ""
}

// lookup resolves a literal key first, then a dotted path into nested objects
func lookup(payload map[string]any, key string) (any, bool) {
	if value, ok := payload[key]; ok {
		return value, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}

	var current any = payload
	for _, part := range strings.Split(key, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
