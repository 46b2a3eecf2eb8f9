package models

import "time"

// Subject is the course subject a payment period belongs to
type Subject string

const (
	SubjectChemistry Subject = "CHEMISTRY"
	SubjectBiology   Subject = "BIOLOGY"
	SubjectBoth      Subject = "BOTH"
)

// PaymentStatus is derived from the amount fields, never stored independently
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusDebt    PaymentStatus = "DEBT"
)

// PaymentMethod represents how a period was settled
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodPayme  PaymentMethod = "PAYME"
	PaymentMethodClick  PaymentMethod = "CLICK"
	PaymentMethodUzum   PaymentMethod = "UZUM"
	PaymentMethodPaynet PaymentMethod = "PAYNET"
	PaymentMethodBank   PaymentMethod = "BANK"
)

// Payment is one billing period of a student in a group
type Payment struct {
	ID             string        `json:"id"`
	StudentID      string        `json:"student_id"`
	GroupID        *string       `json:"group_id"`
	Subject        Subject       `json:"subject"`
	Month          string        `json:"month"` // YYYY-MM, display and filter key only
	PeriodStart    *time.Time    `json:"period_start"`
	PeriodEnd      *time.Time    `json:"period_end"`
	AmountRequired int64         `json:"amount_required"` // group price snapshot at creation
	Discount       int64         `json:"discount"`
	AmountPaid     int64         `json:"amount_paid"`
	Status         PaymentStatus `json:"status"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	PaidAt         *time.Time    `json:"paid_at"`
	Note           string        `json:"note"`
	IsDeleted      bool          `json:"is_deleted"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	// Joined group terms, nil for ungrouped payments
	Group *GroupCatalog `json:"group,omitempty"`
}

// PaymentSettlement is the set of columns a settlement writes to an existing period
type PaymentSettlement struct {
	AmountPaid    int64
	Status        PaymentStatus
	PaymentMethod PaymentMethod
	PaidAt        time.Time
	Note          string
}

// CreatePaymentRequest is the admin form for recording one period manually
type CreatePaymentRequest struct {
	StudentID     string `json:"student_id" validate:"required"`
	GroupID       string `json:"group_id" validate:"required"`
	PeriodStart   string `json:"period_start" validate:"required,datetime=2006-01-02"`
	Discount      int64  `json:"discount" validate:"gte=0"`
	AmountPaid    int64  `json:"amount_paid" validate:"gte=0"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=CASH PAYME CLICK UZUM PAYNET BANK"`
	PaidAt        string `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
	Note          string `json:"note" validate:"max=500"`
}

// AllocatePaymentRequest is a lump sum an admin spreads over a student's periods
type AllocatePaymentRequest struct {
	StudentID     string  `json:"student_id" validate:"required"`
	GroupID       *string `json:"group_id"`
	Amount        int64   `json:"amount" validate:"gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=CASH PAYME CLICK UZUM PAYNET BANK"`
}

// PaymentFilter narrows the payment listings and the debtor report
type PaymentFilter struct {
	Month         string
	Subject       Subject
	Status        PaymentStatus
	StudentPhones []string
	GroupID       string // student enrolled in this group
	CuratorID     string // student enrolled in a group of this curator
	Limit         int
}

// PaymentListRow is a payment with its student and today-aware debt
type PaymentListRow struct {
	Payment
	RequiredNet int64          `json:"required_net"`
	Debt        int64          `json:"debt"`
	ExtraDebt   int64          `json:"extra_debt"`
	Student     StudentSummary `json:"student"`
}

// PaymentListSummary totals a listing
type PaymentListSummary struct {
	Total     int   `json:"total"`
	TotalDebt int64 `json:"total_debt"`
}

// PaymentListResponse is returned by the admin and curator listings
type PaymentListResponse struct {
	OK       bool               `json:"ok"`
	Payments []PaymentListRow   `json:"payments"`
	Summary  PaymentListSummary `json:"summary"`
}
