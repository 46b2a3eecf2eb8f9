package models

import "time"

// AllocationRequest describes one lump payment to spread over a student's periods
type AllocationRequest struct {
	StudentID string
	GroupID   *string // nil allocates across all groups
	Amount    int64
	Method    PaymentMethod
	PaidAt    time.Time
	Now       time.Time // reference date for elapsed-period math
	NoteTag   string
}

// AllocationResult reports what an allocation consumed and touched
type AllocationResult struct {
	AppliedAmount   int64    `json:"applied_amount"`
	RemainingAmount int64    `json:"remaining_amount"`
	UpdatedPayments []string `json:"updated_payments"`
	CreatedPayments []string `json:"created_payments"`
}
