package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"km-backend/internal/models"
	"km-backend/internal/services"
	"km-backend/internal/timeutil"
	"km-backend/pkg/utils"

	"github.com/gorilla/mux"
)

type CheckoutManager interface {
	Create(ctx context.Context, req models.CreateCheckoutRequest) (*models.CreateCheckoutResponse, error)
	Get(ctx context.Context, id string) (*models.PaymentCheckout, error)
}

type ReceiptRenderer interface {
	GetReceiptData(ctx context.Context, checkoutID string) (*services.ReceiptData, error)
	GenerateCheckoutPDF(data *services.ReceiptData) ([]byte, error)
}

type CheckoutHandler struct {
	Service  CheckoutManager
	Receipts ReceiptRenderer
}

func NewCheckoutHandler(service CheckoutManager, receipts ReceiptRenderer) *CheckoutHandler {
	return &CheckoutHandler{Service: service, Receipts: receipts}
}

// Create opens a PENDING checkout. The callback token is returned once,
// here, and never again.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "So'rov formati noto'g'ri")
		return
	}

	resp, err := h.Service.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, "Checkout", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":             true,
		"checkout":       resp.Checkout,
		"callback_token": resp.CallbackToken,
		"pay_url":        resp.PayURL,
	})
}

func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	checkout, err := h.Service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, "Checkout", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "checkout": checkout})
}

// Receipt handles GET /api/admin/checkouts/{id}/receipt.pdf
func (h *CheckoutHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	data, err := h.Receipts.GetReceiptData(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, "Receipt", err)
		return
	}

	pdfData, err := h.Receipts.GenerateCheckoutPDF(data)
	if err != nil {
		respondServiceError(w, "Receipt", err)
		return
	}

	filename := services.ReceiptFilename(data.Checkout, timeutil.Now())
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(pdfData)
}
