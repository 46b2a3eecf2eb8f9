package handlers

import (
	"errors"
	"log"
	"net/http"

	"km-backend/internal/services"
	"km-backend/pkg/utils"
)

// serviceError is the HTTP rendering of a service failure
type serviceError struct {
	status  int
	code    string
	message string // shown to console users, in Uzbek
}

var knownErrors = []struct {
	err error
	serviceError
}{
	{services.ErrCheckoutNotFound, serviceError{http.StatusNotFound, "CHECKOUT_NOT_FOUND", "Checkout topilmadi"}},
	{services.ErrCheckoutTokenInvalid, serviceError{http.StatusForbidden, "CHECKOUT_TOKEN_INVALID", "Token noto'g'ri"}},
	{services.ErrCheckoutAmountInvalid, serviceError{http.StatusBadRequest, "CHECKOUT_AMOUNT_INVALID", "To'lov summasi noto'g'ri"}},
	{services.ErrCheckoutClosed, serviceError{http.StatusConflict, "CHECKOUT_CLOSED", "Checkout yopilgan"}},
	{services.ErrCheckoutNotPaid, serviceError{http.StatusConflict, "CHECKOUT_NOT_PAID", "Checkout hali to'lanmagan"}},
	{services.ErrPaymentNotFound, serviceError{http.StatusNotFound, "PAYMENT_NOT_FOUND", "To'lov topilmadi"}},
	{services.ErrStudentNotFound, serviceError{http.StatusNotFound, "STUDENT_NOT_FOUND", "O'quvchi topilmadi"}},
	{services.ErrGroupNotFound, serviceError{http.StatusNotFound, "GROUP_NOT_FOUND", "Guruh topilmadi"}},
	{services.ErrPaymentTableMissing, serviceError{http.StatusServiceUnavailable, "PAYMENT_TABLE_MISSING", services.ErrPaymentTableMissing.Error()}},
}

func classifyError(err error) serviceError {
	for _, known := range knownErrors {
		if errors.Is(err, known.err) {
			return known.serviceError
		}
	}
	return serviceError{http.StatusInternalServerError, "INTERNAL_ERROR", "Ichki xatolik"}
}

// respondServiceError maps a service error to its status and error code.
// Unexpected errors are logged under tag and reported as 500.
func respondServiceError(w http.ResponseWriter, tag string, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		utils.RespondValidationError(w, verr.Fields)
		return
	}

	se := classifyError(err)
	if se.status == http.StatusInternalServerError {
		log.Printf("[%s] %v", tag, err)
	}
	utils.RespondErrorMessage(w, se.status, se.code, se.message)
}
