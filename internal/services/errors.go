package services

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrCheckoutNotFound      = errors.New("checkout not found")
	ErrCheckoutTokenInvalid  = errors.New("invalid checkout token")
	ErrCheckoutAmountInvalid = errors.New("invalid checkout amount")
	ErrCheckoutClosed        = errors.New("checkout is closed")
	ErrCheckoutNotPaid       = errors.New("checkout is not paid")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrGroupNotFound         = errors.New("group not found")
	ErrStudentNotFound       = errors.New("student not found")
	ErrPaymentTableMissing   = errors.New("payments table missing, run migrations")
)

// ValidationError carries per-field messages for a rejected request
type ValidationError struct {
	Fields url.Values
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, field+" "+strings.Join(msgs, ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: url.Values{field: []string{msg}}}
}
