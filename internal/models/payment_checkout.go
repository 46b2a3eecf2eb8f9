package models

import (
	"encoding/json"
	"time"
)

// CheckoutStatus is the lifecycle state of a payment intent
type CheckoutStatus string

const (
	CheckoutStatusPending CheckoutStatus = "PENDING"
	CheckoutStatusPaid    CheckoutStatus = "PAID"
	CheckoutStatusFailed  CheckoutStatus = "FAILED"
)

// PaymentProvider is an external payment gateway that calls us back
type PaymentProvider string

const (
	ProviderPayme  PaymentProvider = "PAYME"
	ProviderClick  PaymentProvider = "CLICK"
	ProviderUzum   PaymentProvider = "UZUM"
	ProviderPaynet PaymentProvider = "PAYNET"
)

// PaymentCheckout is a reservation created before the provider is paid
type PaymentCheckout struct {
	ID              string          `json:"id"`
	StudentID       string          `json:"student_id"`
	GroupID         *string         `json:"group_id"`
	Amount          int64           `json:"amount"`
	Provider        PaymentProvider `json:"provider"`
	CallbackToken   string          `json:"-"` // shared secret, never exposed
	Status          CheckoutStatus  `json:"status"`
	ExternalTxnID   *string         `json:"external_txn_id"`
	ExternalStatus  *string         `json:"external_status"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	PaidAt          *time.Time      `json:"paid_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CheckoutUpdate carries the provider-side facts written on a status change.
// Nil pointers keep the stored value.
type CheckoutUpdate struct {
	Provider       PaymentProvider
	PaidAt         *time.Time
	ExternalTxnID  *string
	ExternalStatus *string
	Payload        json.RawMessage
}

// ApplyCheckoutInput is a settlement request coming from a callback or mock payment
type ApplyCheckoutInput struct {
	CheckoutID     string
	CallbackToken  string // empty means not supplied
	Provider       PaymentProvider
	AmountPaid     *float64
	ExternalTxnID  *string
	ExternalStatus *string
	Payload        json.RawMessage
	PaidAt         *time.Time
	Actor          Actor // zero for provider callbacks
}

// SettlementResult is what a settlement reports back to the caller
type SettlementResult struct {
	CheckoutID      string         `json:"checkout_id"`
	Status          CheckoutStatus `json:"status"`
	RequestedAmount int64          `json:"requested_amount"`
	AppliedAmount   int64          `json:"applied_amount"`
	RemainingAmount int64          `json:"remaining_amount"`
}

// SettlementEvent is broadcast to live dashboards after a settlement commits
type SettlementEvent struct {
	Type            string          `json:"type"` // checkout.paid, checkout.failed, payment.created, payment.allocated, payment.deleted
	CheckoutID      string          `json:"checkout_id,omitempty"`
	StudentID       string          `json:"student_id"`
	GroupID         *string         `json:"group_id,omitempty"`
	Provider        PaymentProvider `json:"provider,omitempty"`
	RequestedAmount int64           `json:"requested_amount"`
	AppliedAmount   int64           `json:"applied_amount"`
	RemainingAmount int64           `json:"remaining_amount"`
	At              time.Time       `json:"at"`
}

// CreateCheckoutRequest opens a new PENDING checkout
type CreateCheckoutRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	GroupID   *string `json:"group_id"`
	Amount    int64   `json:"amount" validate:"gt=0"`
	Provider  string  `json:"provider" validate:"required,payment_provider"`
}

// CreateCheckoutResponse returns the created checkout and where to pay it
type CreateCheckoutResponse struct {
	Checkout      *PaymentCheckout `json:"checkout"`
	CallbackToken string           `json:"callback_token"`
	PayURL        string           `json:"pay_url,omitempty"`
}
