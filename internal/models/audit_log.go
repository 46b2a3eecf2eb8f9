package models

import (
	"encoding/json"
	"time"
)

// Audit actions
const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
)

// Audited entities
const (
	AuditEntityPayment           = "Payment"
	AuditEntityPaymentCheckout   = "PaymentCheckout"
	AuditEntityPaymentAllocation = "PaymentAllocation"
)

type AuditLog struct {
	ID          int64           `json:"id" db:"id"`
	ActorUserID *string         `json:"actor_user_id,omitempty" db:"actor_user_id"` // nil for provider callbacks
	ActorRole   *string         `json:"actor_role,omitempty" db:"actor_role"`
	Action      string          `json:"action" db:"action"`
	Entity      string          `json:"entity" db:"entity"`
	EntityID    string          `json:"entity_id" db:"entity_id"`
	Payload     json.RawMessage `json:"payload,omitempty" db:"payload"`
	IPAddress   *string         `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AuditLogFilter narrows the audit listing
type AuditLogFilter struct {
	Entity   string
	EntityID string
	Limit    int
	Offset   int
}

// Actor is the authenticated identity behind an admin action
type Actor struct {
	UserID    string
	Role      string
	IPAddress string
}
