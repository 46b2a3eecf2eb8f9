package models

// GroupStatus is the lifecycle of a study group
type GroupStatus string

const (
	GroupStatusPlanned GroupStatus = "REJADA"     // planned
	GroupStatusOpen    GroupStatus = "OCHIQ"      // open, accrues monthly debt
	GroupStatusStarted GroupStatus = "BOSHLANGAN" // started, enrollment closed
	GroupStatusClosed  GroupStatus = "YOPIQ"      // closed
)

// GroupCatalog is the read-only projection of a group the billing code needs
type GroupCatalog struct {
	ID           string      `json:"id"`
	Code         string      `json:"code"`
	Fan          string      `json:"fan"` // free-text subject label
	Status       GroupStatus `json:"status"`
	PriceMonthly int64       `json:"price_monthly"`
	CuratorID    *string     `json:"curator_id,omitempty"`
}
