package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"km-backend/internal/gateway"
	"km-backend/internal/metrics"
	"km-backend/internal/models"
	"km-backend/internal/services"
	"km-backend/pkg/utils"

	"github.com/gorilla/mux"
)

const mockExternalStatus = "MOCK_PAID"

// CheckoutSettler settles or fails checkouts on behalf of providers
type CheckoutSettler interface {
	ApplyCheckoutPayment(ctx context.Context, in models.ApplyCheckoutInput) (*models.SettlementResult, error)
	MarkFailed(ctx context.Context, in models.ApplyCheckoutInput) (models.CheckoutStatus, error)
}

// CallbackArchiver stores raw callback payloads
type CallbackArchiver interface {
	ArchiveCallback(ctx context.Context, provider, checkoutID string, payload []byte) error
}

// PaymentGatewayHandler serves the public provider endpoints
type PaymentGatewayHandler struct {
	Settler              CheckoutSettler
	Archive              CallbackArchiver
	RequireCallbackToken bool
	MockPayEnabled       bool
}

func NewPaymentGatewayHandler(settler CheckoutSettler, archive CallbackArchiver, requireToken, mockPay bool) *PaymentGatewayHandler {
	return &PaymentGatewayHandler{
		Settler:              settler,
		Archive:              archive,
		RequireCallbackToken: requireToken,
		MockPayEnabled:       mockPay,
	}
}

// Callback handles GET and POST notifications from a provider
func (h *PaymentGatewayHandler) Callback(w http.ResponseWriter, r *http.Request) {
	providerRaw := mux.Vars(r)["provider"]
	provider, ok := gateway.ParseProvider(providerRaw)
	if !ok {
		metrics.ProviderCallbacksTotal.WithLabelValues("unknown", "bad_provider").Inc()
		utils.RespondErrorMessage(w, http.StatusBadRequest, "PROVIDER_INVALID", "Provider noto'g'ri")
		return
	}
	providerLabel := string(provider)

	payload := gateway.ReadCallbackPayload(r)
	fields := gateway.ExtractCallbackFields(payload)

	raw, err := json.Marshal(gateway.RedactPayload(payload))
	if err != nil {
		raw = []byte("{}")
	}
	h.archive(providerLabel, fields.CheckoutID, raw)

	if fields.CheckoutID == "" {
		metrics.ProviderCallbacksTotal.WithLabelValues(providerLabel, "missing_checkout").Inc()
		utils.RespondErrorMessage(w, http.StatusBadRequest, "CHECKOUT_ID_MISSING", "checkoutId topilmadi")
		return
	}
	if h.RequireCallbackToken && fields.CallbackToken == "" {
		metrics.ProviderCallbacksTotal.WithLabelValues(providerLabel, "token_missing").Inc()
		log.Printf("[Callback] %s callback for %s without token rejected", providerLabel, fields.CheckoutID)
		utils.RespondErrorMessage(w, http.StatusForbidden, "CHECKOUT_TOKEN_INVALID", "Token noto'g'ri")
		return
	}

	in := models.ApplyCheckoutInput{
		CheckoutID:     fields.CheckoutID,
		CallbackToken:  fields.CallbackToken,
		Provider:       provider,
		ExternalTxnID:  fields.ExternalTxnID,
		ExternalStatus: fields.ExternalStatus,
		Payload:        raw,
	}
	if fields.AmountPaid != nil {
		amount := float64(*fields.AmountPaid)
		in.AmountPaid = &amount
	}

	if fields.Success != nil && !*fields.Success {
		status, err := h.Settler.MarkFailed(r.Context(), in)
		if err != nil {
			h.respondCallbackError(w, providerLabel, err)
			return
		}
		metrics.ProviderCallbacksTotal.WithLabelValues(providerLabel, "failed").Inc()
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "status": status})
		return
	}

	result, err := h.Settler.ApplyCheckoutPayment(r.Context(), in)
	if err != nil {
		h.respondCallbackError(w, providerLabel, err)
		return
	}

	metrics.ProviderCallbacksTotal.WithLabelValues(providerLabel, "ok").Inc()
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "result": result})
}

func (h *PaymentGatewayHandler) respondCallbackError(w http.ResponseWriter, provider string, err error) {
	se := classifyError(err)
	metrics.ProviderCallbacksTotal.WithLabelValues(provider, strings.ToLower(se.code)).Inc()
	respondServiceError(w, "Callback", err)
}

// archive uploads the payload in the background so a slow bucket never
// delays the provider's response
func (h *PaymentGatewayHandler) archive(provider, checkoutID string, raw []byte) {
	if h.Archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.Archive.ArchiveCallback(ctx, provider, checkoutID, raw); err != nil {
			log.Printf("[Archive] %v", err)
		}
	}()
}

// MockPay settles a checkout from a browser link, for testing without a
// real provider. It answers with a small HTML page.
func (h *PaymentGatewayHandler) MockPay(w http.ResponseWriter, r *http.Request) {
	if !h.MockPayEnabled {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	checkoutID := strings.TrimSpace(q.Get("checkoutId"))
	token := strings.TrimSpace(q.Get("token"))
	providerRaw := strings.TrimSpace(q.Get("provider"))
	amountRaw := strings.TrimSpace(q.Get("amount"))

	if providerRaw == "" {
		providerRaw = string(models.ProviderPayme)
	}
	if checkoutID == "" {
		renderMockPage(w, false, "checkoutId topilmadi")
		return
	}
	provider, ok := gateway.ParseProvider(providerRaw)
	if !ok {
		renderMockPage(w, false, "Provider noto'g'ri")
		return
	}

	var amountPaid *float64
	if amountRaw != "" {
		if n, err := strconv.ParseFloat(amountRaw, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			amountPaid = &n
		}
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"mock":       true,
		"checkoutId": checkoutID,
		"provider":   provider,
		"amountPaid": amountPaid,
	})
	externalStatus := mockExternalStatus

	result, err := h.Settler.ApplyCheckoutPayment(r.Context(), models.ApplyCheckoutInput{
		CheckoutID:     checkoutID,
		CallbackToken:  token,
		Provider:       provider,
		AmountPaid:     amountPaid,
		ExternalStatus: &externalStatus,
		Payload:        payload,
	})
	if err != nil {
		se := classifyError(err)
		if se.status == http.StatusInternalServerError {
			log.Printf("[MockPay] %s: %v", checkoutID, err)
			renderMockPage(w, false, "To'lovni qayd qilishda xatolik")
			return
		}
		renderMockPage(w, false, se.message)
		return
	}

	renderMockPage(w, true, fmt.Sprintf("To'lov muvaffaqiyatli qabul qilindi. Summasi: %s", services.FormatSom(result.AppliedAmount)))
}

func renderMockPage(w http.ResponseWriter, ok bool, message string) {
	mark, status := "&#10004;", http.StatusOK
	if !ok {
		mark, status = "&#10008;", http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"/><title>To'lov</title></head><body style="font-family: sans-serif; padding: 24px;">%s %s</body></html>`,
		mark, html.EscapeString(message))
}
