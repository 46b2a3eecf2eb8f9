package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"km-backend/internal/billing"
	"km-backend/internal/middleware"
	"km-backend/internal/models"
	"km-backend/pkg/utils"

	"github.com/gorilla/mux"
)

// PaymentManager is the payment service as seen by the console handlers
type PaymentManager interface {
	List(ctx context.Context, filter models.PaymentFilter, scope models.EnrollmentScope) (*models.PaymentListResponse, error)
	CuratorPayments(ctx context.Context, curatorID string, filter models.PaymentFilter) (*models.PaymentListResponse, error)
	CreateManual(ctx context.Context, req models.CreatePaymentRequest, actor models.Actor) (*models.Payment, error)
	AllocateManual(ctx context.Context, req models.AllocatePaymentRequest, actor models.Actor) (*models.AllocationResult, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
	Debtors(ctx context.Context, filter models.PaymentFilter) (*models.DebtorReport, error)
}

type PaymentHandler struct {
	Service PaymentManager
}

func NewPaymentHandler(service PaymentManager) *PaymentHandler {
	return &PaymentHandler{Service: service}
}

// List returns payments with today-aware debt for the admin page
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, errs := parsePaymentFilter(r.URL.Query())
	if errs != nil {
		utils.RespondValidationError(w, errs)
		return
	}

	resp, err := h.Service.List(r.Context(), filter, models.EnrollmentScope{GroupID: filter.GroupID})
	if err != nil {
		respondServiceError(w, "Payments", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// CuratorList returns payments of students in the caller's groups
func (h *PaymentHandler) CuratorList(w http.ResponseWriter, r *http.Request) {
	curatorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok || curatorID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED")
		return
	}

	filter, errs := parsePaymentFilter(r.URL.Query())
	if errs != nil {
		utils.RespondValidationError(w, errs)
		return
	}

	resp, err := h.Service.CuratorPayments(r.Context(), curatorID, filter)
	if err != nil {
		respondServiceError(w, "Payments", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "So'rov formati noto'g'ri")
		return
	}

	payment, err := h.Service.CreateManual(r.Context(), req, middleware.ActorFromRequest(r))
	if err != nil {
		respondServiceError(w, "Payments", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "payment": payment})
}

func (h *PaymentHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req models.AllocatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "So'rov formati noto'g'ri")
		return
	}

	result, err := h.Service.AllocateManual(r.Context(), req, middleware.ActorFromRequest(r))
	if err != nil {
		respondServiceError(w, "Payments", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "result": result})
}

func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Service.Delete(r.Context(), id, middleware.ActorFromRequest(r)); err != nil {
		respondServiceError(w, "Payments", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Debtors returns the debtor report
func (h *PaymentHandler) Debtors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, errs := parsePaymentFilter(q)
	if errs != nil {
		utils.RespondValidationError(w, errs)
		return
	}
	filter.CuratorID = strings.TrimSpace(q.Get("curatorId"))

	report, err := h.Service.Debtors(r.Context(), filter)
	if err != nil {
		respondServiceError(w, "Debtors", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, report)
}

// parsePaymentFilter reads the shared listing filters. Empty values mean
// no filter; malformed ones are reported per field.
func parsePaymentFilter(q url.Values) (models.PaymentFilter, url.Values) {
	var filter models.PaymentFilter
	errs := url.Values{}

	if month := strings.TrimSpace(q.Get("month")); month != "" {
		if billing.IsValidMonth(month) {
			filter.Month = month
		} else {
			errs.Add("month", "Oy YYYY-MM formatida bo'lishi kerak")
		}
	}

	if raw := strings.TrimSpace(q.Get("subject")); raw != "" {
		if subject, ok := billing.ParseSubject(raw); ok {
			filter.Subject = subject
		} else {
			errs.Add("subject", "Fan noto'g'ri")
		}
	}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		if status, ok := billing.ParsePaymentStatus(raw); ok {
			filter.Status = status
		} else {
			errs.Add("status", "Holat noto'g'ri")
		}
	}

	if phone := strings.TrimSpace(q.Get("studentPhone")); phone != "" {
		filter.StudentPhones = billing.PhoneVariants(phone)
	}

	filter.GroupID = strings.TrimSpace(q.Get("groupId"))

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, ok := billing.ParseNonNegativeInt(raw); ok {
			filter.Limit = int(n)
		} else {
			errs.Add("limit", "Manfiy bo'lmagan butun son bo'lishi kerak")
		}
	}

	if len(errs) > 0 {
		return filter, errs
	}
	return filter, nil
}
